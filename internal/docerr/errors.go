// Package docerr defines the error kinds surfaced by the template pipeline.
package docerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedTemplate
	KindRender
	KindConversionUnavailable
	KindIO
	KindInvalidState
)

// Sentinels for errors.Is checks against a *Error of the matching kind.
var (
	ErrMalformedTemplate     = errors.New("malformed template")
	ErrRender                = errors.New("render failed")
	ErrConversionUnavailable = errors.New("conversion facility unavailable")
	ErrIO                    = errors.New("i/o failure")
	ErrInvalidState          = errors.New("invalid pipeline state")
)

func (k Kind) String() string {
	switch k {
	case KindMalformedTemplate:
		return "malformed_template"
	case KindRender:
		return "render"
	case KindConversionUnavailable:
		return "conversion_unavailable"
	case KindIO:
		return "io"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Code returns the stable upper-case code reported by the HTTP API.
func (k Kind) Code() string {
	switch k {
	case KindMalformedTemplate:
		return "MALFORMED_TEMPLATE"
	case KindRender:
		return "RENDER_FAILED"
	case KindConversionUnavailable:
		return "CONVERSION_UNAVAILABLE"
	case KindIO:
		return "IO_FAILED"
	case KindInvalidState:
		return "INVALID_STATE"
	default:
		return "INTERNAL"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindMalformedTemplate:
		return ErrMalformedTemplate
	case KindRender:
		return ErrRender
	case KindConversionUnavailable:
		return ErrConversionUnavailable
	case KindIO:
		return ErrIO
	case KindInvalidState:
		return ErrInvalidState
	default:
		return nil
	}
}

// Error is a classified pipeline error. Op names the failing operation,
// Path the file involved (if any).
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel()
	prefix := e.Op
	if prefix == "" {
		prefix = e.Kind.String()
	}
	var text string
	switch {
	case msg != nil && e.Err != nil:
		text = fmt.Sprintf("%s: %v: %v", prefix, msg, e.Err)
	case msg != nil:
		text = fmt.Sprintf("%s: %v", prefix, msg)
	case e.Err != nil:
		text = fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		text = prefix
	}
	if e.Path != "" {
		text += " (" + e.Path + ")"
	}
	return text
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New returns a classified error wrapping err.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Malformed wraps err as a malformed-template error.
func Malformed(op string, err error) *Error {
	return New(KindMalformedTemplate, op, err)
}

// Render wraps err as a render error.
func Render(op string, err error) *Error {
	return New(KindRender, op, err)
}

// Unavailable wraps err as a conversion-unavailable error.
func Unavailable(op string, err error) *Error {
	return New(KindConversionUnavailable, op, err)
}

// IO wraps err as an I/O error on path.
func IO(op, path string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
