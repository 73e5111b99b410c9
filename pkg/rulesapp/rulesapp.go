// Package rulesapp wraps the rules compiler and rules engine services in
// typed clients and provides container specs for their images.
package rulesapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/schmitthub/svcharness/pkg/container"
	"github.com/schmitthub/svcharness/pkg/rest"
)

// Image names of the services.
const (
	CompilerImage = "rulesapp-compiler"
	EngineImage   = "rulesapp-engine"
)

// ServicePort is the port both services listen on inside their containers.
const ServicePort = "8080/tcp"

// Decisions an engine query can produce.
const (
	Permit    = "Permit"
	Deny      = "Deny"
	Undecided = "Undecided"
)

// CompilerSpec returns a container spec for the compiler published on hostPort.
func CompilerSpec(runID string, hostPort int) container.Spec {
	return container.Spec{
		Name:  CompilerImage,
		RunID: runID,
		Ports: map[string]int{ServicePort: hostPort},
	}
}

// EngineSpec returns a container spec for the engine published on hostPort.
func EngineSpec(runID string, hostPort int) container.Spec {
	return container.Spec{
		Name:  EngineImage,
		RunID: runID,
		Ports: map[string]int{ServicePort: hostPort},
	}
}

// Compiler turns rule source text into the engine's JSON rule set.
type Compiler struct {
	*rest.Client
}

// NewCompiler wraps c.
func NewCompiler(c *rest.Client) *Compiler {
	return &Compiler{Client: c}
}

// Compile posts source to /compile and returns the compiled rule set.
func (c *Compiler) Compile(ctx context.Context, source string) (json.RawMessage, error) {
	resp, err := c.Post(ctx, "/compile", source, rest.WithContentType(rest.ContentTypeText))
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if !json.Valid(resp.Body) {
		return nil, fmt.Errorf("compile: response is not JSON: %q", resp.Body)
	}
	return json.RawMessage(resp.Body), nil
}

// Engine evaluates queries against a loaded rule set.
type Engine struct {
	*rest.Client
}

// NewEngine wraps c.
func NewEngine(c *rest.Client) *Engine {
	return &Engine{Client: c}
}

// Load posts a compiled rule set to /load. It reports whether the engine
// acknowledged it with "ok".
func (e *Engine) Load(ctx context.Context, compiled json.RawMessage) (bool, error) {
	resp, err := e.Post(ctx, "/load", []byte(compiled), rest.WithContentType(rest.ContentTypeJSON))
	if err != nil {
		return false, fmt.Errorf("load: %w", err)
	}
	return resp.Text() == "ok", nil
}

// Query posts request attributes to /query and returns one result per rule.
func (e *Engine) Query(ctx context.Context, attrs map[string]string) ([]Result, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	resp, err := e.Post(ctx, "/query", attrs)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	var results []Result
	if err := resp.JSON(&results); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return results, nil
}

// Result is one rule's decision. The engine encodes it either as a bare
// string or as an object with a "value" field.
type Result struct {
	Value string `json:"value"`
}

func (r *Result) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Value)
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	r.Value = obj.Value
	return nil
}
