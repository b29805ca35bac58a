// ./main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/fastwork-cli/cmd"
	"github.com/xkilldash9x/fastwork-cli/internal/observability"
)

const panicLogFile = "panic.log"

// Injected for tests.
var (
	osWriteFile           = os.WriteFile
	osExit                = os.Exit
	stdout      io.Writer = os.Stdout
	execute               = cmd.Execute
)

func main() {
	defer handlePanic()

	// SIGINT/SIGTERM cancel the context; the session is still saved on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		osExit(1)
	}
}

// handlePanic turns a panic that escaped the command into an error document,
// keeps the stack in panic.log and exits 1.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
	} else {
		fmt.Fprintf(os.Stderr, "Unexpected crash; details logged to %s\n", panicLogFile)
	}

	if err := cmd.WriteError(stdout, &cmd.PanicError{Value: r}); err != nil {
		fmt.Fprintln(os.Stderr, "Error: failed to write error document:", err)
	}
	osExit(1)
}
