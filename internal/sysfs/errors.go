package sysfs

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// Kind categorizes adapter failures.
type Kind int

const (
	KindNotPresent Kind = iota + 1
	KindPermissionDenied
	KindMalformedContent
	KindIOError
	KindReadOnlyFile
	KindWriteRejected
)

func (k Kind) String() string {
	switch k {
	case KindNotPresent:
		return "NotPresent"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindMalformedContent:
		return "MalformedContent"
	case KindIOError:
		return "IOError"
	case KindReadOnlyFile:
		return "ReadOnlyFile"
	case KindWriteRejected:
		return "WriteRejected"
	default:
		return "Unknown"
	}
}

// Error is the structured failure returned by every Adapter call.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so callers can write
// errors.Is(err, sysfs.ErrNotPresent).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == ""
}

// Sentinels for errors.Is.
var (
	ErrNotPresent       = &Error{Kind: KindNotPresent}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrMalformedContent = &Error{Kind: KindMalformedContent}
	ErrIOError          = &Error{Kind: KindIOError}
	ErrReadOnlyFile     = &Error{Kind: KindReadOnlyFile}
	ErrWriteRejected    = &Error{Kind: KindWriteRejected}
)

// KindOf returns the Kind carried by err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// classify maps an os-level error to an *Error.
func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	kind := KindIOError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotPresent
	case errors.Is(err, fs.ErrPermission), errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		kind = KindPermissionDenied
	case op == "write" && errors.Is(err, unix.EINVAL):
		// sysfs answers EINVAL to a governor or flag it does not accept
		kind = KindWriteRejected
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func malformed(path, content string) error {
	return &Error{Kind: KindMalformedContent, Op: "read", Path: path, Err: fmt.Errorf("unexpected content %q", content)}
}
