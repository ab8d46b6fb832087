package vfs

import (
	"errors"
	"fmt"
)

// Code is a POSIX-style filesystem error code.
type Code string

const (
	ENOENT    Code = "ENOENT"
	EEXIST    Code = "EEXIST"
	EISDIR    Code = "EISDIR"
	ENOTDIR   Code = "ENOTDIR"
	ENOTEMPTY Code = "ENOTEMPTY"
	EINVAL    Code = "EINVAL"
	ENOSYS    Code = "ENOSYS"
)

// Error is the tagged failure every filesystem operation reports: the
// POSIX code and the path it applies to.
type Error struct {
	Code Code
	Path string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Path)
}

// Is matches another *Error by code; a target with an empty Path matches
// any path, so errors.Is(err, &Error{Code: ENOENT}) works as a sentinel
// check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Path == "" || t.Path == e.Path)
}

func fsErr(code Code, path string) *Error {
	return &Error{Code: code, Path: path}
}

// CodeOf extracts the POSIX code from err, or "" if err is not a
// filesystem error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
