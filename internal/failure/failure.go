// Package failure defines the error taxonomy shared by every stage of a
// segmentation run. None of these errors are retried; they identify what
// went wrong and where so the operator can fix the input and rerun.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a run failure.
type Kind string

const (
	// KindConfig marks an invalid run configuration detected before any output is written.
	KindConfig Kind = "config"
	// KindParse marks a malformed caption document.
	KindParse Kind = "parse"
	// KindDecode marks an unreadable or unsupported audio input.
	KindDecode Kind = "decode"
	// KindIO marks a filesystem or upload failure while producing output.
	KindIO Kind = "io"
	// KindUnknown is reported for errors that never passed through this package.
	KindUnknown Kind = "unknown"
)

// NoIndex is used when a failure is not tied to a single caption.
const NoIndex = -1

// Error is a classified run failure.
type Error struct {
	Kind Kind
	// Resource is the offending file path or configuration key, if any.
	Resource string
	// Index is the original caption index, or NoIndex.
	Index int
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Resource != "" {
		fmt.Fprintf(&b, " [%s]", e.Resource)
	}
	if e.Index != NoIndex {
		fmt.Fprintf(&b, " at caption %d", e.Index)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Config wraps err as a configuration failure for the given key or path.
func Config(resource string, err error) error {
	return &Error{Kind: KindConfig, Resource: resource, Index: NoIndex, Err: err}
}

// Parse wraps err as a caption parse failure. index is the block position
// where parsing stopped, or NoIndex.
func Parse(resource string, index int, err error) error {
	return &Error{Kind: KindParse, Resource: resource, Index: index, Err: err}
}

// Decode wraps err as an audio decode failure.
func Decode(resource string, err error) error {
	return &Error{Kind: KindDecode, Resource: resource, Index: NoIndex, Err: err}
}

// IO wraps err as an output failure for the given path and caption index.
func IO(resource string, index int, err error) error {
	return &Error{Kind: KindIO, Resource: resource, Index: index, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries a failure of kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
