package e2e

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/svcharness/internal/mocks"
	"github.com/schmitthub/svcharness/pkg/rulesapp"
	"github.com/schmitthub/svcharness/test/harness"
)

func TestCompiler(t *testing.T) {
	compiler := startCompiler(t)

	compiled, err := compiler.Compile(testContext(t), "always permit")
	require.NoError(t, err)
	assert.JSONEq(t, `{"attributes":[],"rules":[{"type":"always","decision":"Permit"}]}`, string(compiled))
}

func TestEndToEnd(t *testing.T) {
	compiler := startCompiler(t)
	engine := startEngine(t)
	ctx := testContext(t)

	compiled, err := compiler.Compile(ctx, "always permit")
	require.NoError(t, err)
	loaded, err := engine.Load(ctx, compiled)
	require.NoError(t, err)
	require.True(t, loaded)

	results, err := engine.Query(ctx, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, rulesapp.Permit, results[0].Value)
}

const myValueRules = `
myValue = request "myValue"

exclusive {
	permit when myValue = "foo",
	deny when myValue = "bar"
}
`

func TestRequestAttributes(t *testing.T) {
	compiler := startCompiler(t)
	engine := startEngine(t)
	ctx := testContext(t)

	compiled, err := compiler.Compile(ctx, myValueRules)
	require.NoError(t, err)
	loaded, err := engine.Load(ctx, compiled)
	require.NoError(t, err)
	require.True(t, loaded)

	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"foo permits", "foo", rulesapp.Permit},
		{"bar denies", "bar", rulesapp.Deny},
		{"no rule for other values", "qq", rulesapp.Undecided},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := engine.Query(testContext(t), map[string]string{"myValue": tt.value})
			require.NoError(t, err)
			require.NotEmpty(t, results)
			if results[0].Value != tt.want {
				t.Errorf("query myValue=%q = %q, want %q", tt.value, results[0].Value, tt.want)
			}
		})
	}
}

func TestServiceCall(t *testing.T) {
	cfg, err := harness.Config()
	require.NoError(t, err)

	compiler := startCompiler(t)
	engine := startEngine(t, withServicesHost(t, cfg.Service.Hostname))
	svc := harness.StartService(t, mocks.Hello())
	ctx := testContext(t)

	compiled, err := compiler.Compile(ctx, fmt.Sprintf(`
result = GET "%s"
if result = "ok" always permit else always deny
`, svc.URL("/hello", false)))
	require.NoError(t, err)
	loaded, err := engine.Load(ctx, compiled)
	require.NoError(t, err)
	require.True(t, loaded)

	results, err := engine.Query(ctx, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, rulesapp.Permit, results[0].Value)

	invocations := svc.Invocations()
	require.Len(t, invocations, 1)
	assert.Equal(t, "/hello", invocations[0].Request.Path)
	assert.Equal(t, svc.SessionID(), invocations[0].Session)
}
