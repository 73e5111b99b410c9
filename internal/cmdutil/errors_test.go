package cmdutil

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schmitthub/svcharness/internal/docker"
)

func TestPrintError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "plain error",
			err:      errors.New("boom"),
			contains: []string{"Error: boom"},
		},
		{
			name:     "wrapped docker error",
			err:      fmt.Errorf("starting: %w", docker.ErrDockerNotRunning(errors.New("dial unix"))),
			contains: []string{"dial unix"},
		},
		{
			name:     "flag error",
			err:      FlagErrorf("unknown mock %q", "x"),
			contains: []string{`Error: unknown mock "x"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintError(&buf, tt.err)
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}
