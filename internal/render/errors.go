package render

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
)

// ErrTypeset is matched by every typesetting failure
var ErrTypeset = errors.New("latex failed to typeset document")

// TypesetError carries what latex reported for a failed document
type TypesetError struct {
	Stderr string
	// Diagnostics holds the "! ..." error lines latex printed
	Diagnostics []string
}

func (e *TypesetError) Error() string {
	msg := ErrTypeset.Error()
	switch {
	case len(e.Diagnostics) > 0:
		msg += ": " + strings.Join(e.Diagnostics, "; ")
	case e.Stderr != "":
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *TypesetError) Unwrap() error {
	return ErrTypeset
}

// diagnostics extracts latex error lines, which start with "! "
func diagnostics(stdout []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "! ") {
			lines = append(lines, strings.TrimPrefix(line, "! "))
		}
	}
	return lines
}
