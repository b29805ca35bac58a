// ./main_test.go
package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/fastwork-cli/cmd"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	stdout = os.Stdout
	execute = cmd.Execute
}

func TestMainExitCode(t *testing.T) {
	defer resetMocks()

	t.Run("failure exits 1", func(t *testing.T) {
		code := -1
		osExit = func(c int) { code = c }
		execute = func(ctx context.Context) error { return errors.New("boom") }
		main()
		assert.Equal(t, 1, code)
	})

	t.Run("success does not exit", func(t *testing.T) {
		code := -1
		osExit = func(c int) { code = c }
		execute = func(ctx context.Context) error { return nil }
		main()
		assert.Equal(t, -1, code)
	})
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	var out bytes.Buffer
	var logged []byte
	code := -1
	stdout = &out
	osExit = func(c int) { code = c }
	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		logged = data
		return nil
	}
	execute = func(ctx context.Context) error { panic("selector engine exploded") }

	main()

	assert.Equal(t, 1, code)
	assert.Contains(t, string(logged), "panic: selector engine exploded")

	var doc cmd.ErrorDocument
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, cmd.ErrCodePanic, doc.Code)
	assert.Equal(t, "panic: selector engine exploded", doc.Error)
}

func TestHandlePanicLogWriteFailure(t *testing.T) {
	defer resetMocks()

	var out bytes.Buffer
	code := -1
	stdout = &out
	osExit = func(c int) { code = c }
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only file system") }
	execute = func(ctx context.Context) error { panic(42) }

	main()

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), `"PANIC"`)
}
