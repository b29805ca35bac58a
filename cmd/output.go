// File: cmd/output.go
package cmd

import (
	"fmt"
	"io"

	json "github.com/json-iterator/go"
)

// documentJSON sorts map keys so documents are stable across runs.
var documentJSON = json.ConfigCompatibleWithStandardLibrary

// writeJSON writes v to w as one indented JSON document.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := documentJSON.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output document: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// orEmpty keeps empty sections as [] in documents instead of null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
