// Package errors implements module/code tagged errors. A tagged error can be
// reduced to its (module, code) pair on one side of a wire and rebuilt as the
// identical sentinel on the other, so errors.Is keeps working across the host
// protocol and the oracle return value envelope.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	// UnknownModule is reported for errors that carry no tag.
	UnknownModule = "unknown"

	// CodeNoError is reserved for the absence of an error.
	CodeNoError = 0
)

// Aliases of the standard library helpers, so that importing this package
// in place of the standard one is enough.
var (
	As     = errors.As
	Is     = errors.Is
	Unwrap = errors.Unwrap
)

type tag struct {
	module string
	code   uint32
}

func (t tag) String() string {
	return fmt.Sprintf("%s/%d", t.module, t.code)
}

type taggedError struct {
	tag
	msg string
}

func (e *taggedError) Error() string {
	return e.msg
}

type contextError struct {
	err *taggedError
	ctx string
}

func (e *contextError) Error() string {
	return e.err.msg + ": " + e.ctx
}

func (e *contextError) Unwrap() error {
	return e.err
}

var (
	sentinelsLock sync.RWMutex
	sentinels     = make(map[tag]*taggedError)

	errUnknown = New(UnknownModule, 1, "unknown error")
)

// New registers and returns a sentinel error. It panics when the
// (module, code) pair is taken or when code is CodeNoError, both of which
// are programming errors caught at init time.
func New(module string, code uint32, msg string) error {
	t := tag{module, code}
	if code == CodeNoError {
		panic(fmt.Sprintf("errors: %s uses the reserved code", t))
	}

	sentinelsLock.Lock()
	defer sentinelsLock.Unlock()

	if prev, ok := sentinels[t]; ok {
		panic(fmt.Sprintf("errors: %s already registered as '%s'", t, prev.msg))
	}
	e := &taggedError{tag: t, msg: msg}
	sentinels[t] = e
	return e
}

// WithContext attaches a human readable detail to a tagged error. The
// result still matches the sentinel under Is and reports the same code.
func WithContext(err error, ctx string) error {
	var te *taggedError
	if ctx == "" || !As(err, &te) {
		return err
	}
	return &contextError{err: te, ctx: ctx}
}

// Context returns the detail attached with WithContext, if any.
func Context(err error) string {
	var ce *contextError
	if As(err, &ce) {
		return ce.ctx
	}
	return ""
}

// Code returns the tag of err. Untagged errors report UnknownModule and a nil
// error reports an empty module with CodeNoError.
func Code(err error) (string, uint32) {
	if err == nil {
		return "", CodeNoError
	}

	var te *taggedError
	if !As(err, &te) {
		te = errUnknown.(*taggedError)
	}
	return te.module, te.code
}

// IsCoded returns true iff err wraps a registered tagged error other than
// the unknown error.
func IsCoded(err error) bool {
	var te *taggedError
	return As(err, &te) && te != errUnknown
}

// FromCode rebuilds an error received over the wire. Known tags resolve to
// their sentinel, with any trailing detail in message kept as context.
// Unknown tags produce a fresh error that still reports the received tag.
func FromCode(module string, code uint32, message string) error {
	t := tag{module, code}

	sentinelsLock.RLock()
	e, ok := sentinels[t]
	sentinelsLock.RUnlock()

	switch {
	case !ok || e == errUnknown:
		return &taggedError{tag: t, msg: message}
	case message == e.msg:
		return e
	default:
		return WithContext(e, strings.TrimPrefix(message, e.msg+": "))
	}
}
