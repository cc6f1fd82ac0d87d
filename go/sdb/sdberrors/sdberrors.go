/*
Copyright 2026 The Shardine Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sdberrors provides simple error handling primitives for shardine.
//
// Every error carries an ErrorCode that classifies the failure. The planner uses
// two tiers: conditions a caller may decide to work around (Unimplemented,
// FailedPrecondition) and internal invariant violations (Internal) which
// abort the whole statement.
//
// The package provides single points of entry, so that error
// code plumbing stays consistent across the codebase:
//
//	sdberrors.New(code, "message")
//	sdberrors.Errorf(code, "format", args...)
//	sdberrors.Wrap(err, "annotation")
//	sdberrors.Wrapf(err, "format", args...)
//	sdberrors.Code(err)
//	sdberrors.RootCause(err)
package sdberrors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an error. The numeric values follow the canonical
// RPC error space so they survive a transport boundary unchanged.
type ErrorCode int32

const (
	OK                 ErrorCode = 0
	Unknown            ErrorCode = 2
	InvalidArgument    ErrorCode = 3
	ResourceExhausted  ErrorCode = 8
	FailedPrecondition ErrorCode = 9
	Unimplemented      ErrorCode = 12
	Internal           ErrorCode = 13
)

func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "ok"
	case InvalidArgument:
		return "invalid argument"
	case FailedPrecondition:
		return "failed precondition"
	case ResourceExhausted:
		return "resource exhausted"
	case Unimplemented:
		return "unimplemented"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// fundamental is an error with a code and a message, no cause.
type fundamental struct {
	code ErrorCode
	msg  string
}

func (f *fundamental) Error() string { return f.msg }

// New returns an error with the supplied message and code.
func New(code ErrorCode, message string) error {
	return &fundamental{code: code, msg: message}
}

// Errorf formats according to a format specifier and returns the string
// as a value that satisfies error with the given code.
func Errorf(code ErrorCode, format string, args ...any) error {
	return &fundamental{code: code, msg: fmt.Sprintf(format, args...)}
}

// Unsupportedf returns an Unimplemented error for a query shape the planner
// understands but does not handle. Callers may fall back or surface it.
func Unsupportedf(format string, args ...any) error {
	return Errorf(Unimplemented, "unsupported: "+format, args...)
}

// Bugf returns an Internal error for a state the planner never expects.
// These abort the statement; there is nothing the caller can do about them.
func Bugf(format string, args ...any) error {
	return Errorf(Internal, "[BUG] "+format, args...)
}

// wrapping is an error annotating a cause.
type wrapping struct {
	cause error
	msg   string
}

func (w *wrapping) Error() string { return w.msg + ": " + w.cause.Error() }
func (w *wrapping) Unwrap() error { return w.cause }

// Wrap returns an error annotating err with a message.
// If err is nil, Wrap returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrapping{cause: err, msg: message}
}

// Wrapf returns an error annotating err with the format specifier.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapping{cause: err, msg: fmt.Sprintf(format, args...)}
}

// Code returns the error code of the error, walking the cause chain until a
// coded error is found. Uncoded errors map to Unknown, nil maps to OK.
func Code(err error) ErrorCode {
	if err == nil {
		return OK
	}
	var f *fundamental
	if errors.As(err, &f) {
		return f.code
	}
	return Unknown
}

// RootCause returns the innermost error of the chain, or err itself if err
// wraps nothing.
func RootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
