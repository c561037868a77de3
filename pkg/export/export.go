// Package export writes generation results out of the service: verbatim
// text to local temp files, and conversation transcripts to object storage.
package export

import (
	"fmt"
	"os"
)

// WriteText writes content verbatim to a newly created temporary file with
// a .txt suffix and returns its path. Single-writer, single-use; the caller
// owns the file afterwards.
func WriteText(content string) (string, error) {
	f, err := os.CreateTemp("", "briefly-*.txt")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return f.Name(), nil
}
