// Mocksvc runs the harness's mock services and container specs outside of
// go test.
//
// Usage:
//
//	go build -o bin/mocksvc ./cmd/mocksvc
//	./bin/mocksvc serve hello bank
//	./bin/mocksvc up containers.yaml
//	./bin/mocksvc prune
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/schmitthub/svcharness/internal/cmd/factory"
	"github.com/schmitthub/svcharness/internal/cmd/root"
	"github.com/schmitthub/svcharness/internal/cmdutil"
	"github.com/schmitthub/svcharness/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	defer logger.CloseFileWriter()

	f := factory.New(version)
	rootCmd := root.NewCmdRoot(f)

	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return 0
	}

	cmdutil.PrintError(f.IOStreams.ErrOut, err)
	var flagErr *cmdutil.FlagError
	if errors.As(err, &flagErr) {
		fmt.Fprintln(f.IOStreams.ErrOut)
		fmt.Fprint(f.IOStreams.ErrOut, cmd.UsageString())
	}
	return 1
}
