package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SpecFile is the on-disk form of a set of container specs.
//
//	containers:
//	  - name: rules-engine
//	    tag: latest
//	    env:
//	      LOG_LEVEL: debug
//	    ports:
//	      8080/tcp: 41234
type SpecFile struct {
	Containers []Spec `yaml:"containers"`
}

// LoadSpecFile reads and validates the specs in a YAML file.
func LoadSpecFile(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}
	return ParseSpecs(bytes.NewReader(data))
}

// ParseSpecs decodes and validates YAML specs from r. Unknown keys are errors.
func ParseSpecs(r io.Reader) ([]Spec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f SpecFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing spec file: %w", err)
	}

	var errs []error
	for i, s := range f.Containers {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("containers[%d]: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Containers, nil
}
