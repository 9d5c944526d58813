// Package errs classifies failures of the ingestion and retrieval pipelines.
//
// Every error that crosses a component boundary is wrapped in an *Error that
// carries a Kind. Callers test the kind with errors.Is against the sentinel
// values, e.g. errors.Is(err, errs.ErrCorruption).
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindInput: unreadable directory, non-text file, empty query, bad arguments.
	KindInput
	// KindProvider: the embedding provider failed or answered malformed data.
	KindProvider
	// KindCorruption: a stored embedding does not decode to the configured dimension.
	KindCorruption
	// KindStore: schema or connection failure of the vector store.
	KindStore
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindInput:      "input",
	KindProvider:   "provider",
	KindCorruption: "corruption",
	KindStore:      "store",
}

func (k Kind) String() string { return kindNames[k] }

// Sentinels for errors.Is.
var (
	ErrInput      = &Error{Kind: KindInput}
	ErrProvider   = &Error{Kind: KindProvider}
	ErrCorruption = &Error{Kind: KindCorruption}
	ErrStore      = &Error{Kind: KindStore}
)

// Error is a classified error. Op names the failing operation ("store.scan").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

func newErr(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Err: err}
}

func Input(op string, err error) error      { return newErr(KindInput, op, err) }
func Provider(op string, err error) error   { return newErr(KindProvider, op, err) }
func Corruption(op string, err error) error { return newErr(KindCorruption, op, err) }
func Store(op string, err error) error      { return newErr(KindStore, op, err) }

func Inputf(op, format string, args ...any) error {
	return Input(op, fmt.Errorf(format, args...))
}

func Providerf(op, format string, args ...any) error {
	return Provider(op, fmt.Errorf(format, args...))
}

func Corruptionf(op, format string, args ...any) error {
	return Corruption(op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
