// Copyright 2025 Cabinet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fault defines the error taxonomy shared by the storage engine.
// Every failed lifecycle call surfaces as an *Error with a Kind; callers
// (the HTTP layer, the CLI) convert it into an Outcome rather than leaking
// raw database or filesystem faults.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure.
type Kind string

const (
	// KindNotFound - item, parent, or move target does not exist.
	KindNotFound Kind = "not_found"
	// KindConflict - name collision or destination already exists.
	KindConflict Kind = "conflict"
	// KindInvalidOperation - circular move, unsupported rename extension,
	// orphan restore, and similar refused requests.
	KindInvalidOperation Kind = "invalid_operation"
	// KindQuotaExceeded - the owner's storage limit would be exceeded.
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindIO - a physical create/move/delete failed.
	KindIO Kind = "io"
	// KindSecurity - a resolved path escaped the owner's storage root.
	KindSecurity Kind = "security"
	// KindInternal - anything else; always logged with full context.
	KindInternal Kind = "internal"
)

// Error is a classified engine error. It wraps the underlying cause so
// errors.Is/As keep working through the classification layer.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error without an underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. Returns nil if err is nil.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// NotFound reports whether err classifies as not-found.
func NotFound(err error) bool { return KindOf(err) == KindNotFound }

// Conflict reports whether err classifies as a conflict.
func Conflict(err error) bool { return KindOf(err) == KindConflict }

// KindOf extracts the Kind from an error chain. Unclassified non-nil
// errors report KindInternal; nil reports the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Outcome is the structured result handed to callers outside the engine:
// a success flag, the error kind if any, and a human-readable message.
type Outcome struct {
	OK      bool   `json:"ok"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// OutcomeOf converts an error (possibly nil) into an Outcome.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{OK: true}
	}
	var fe *Error
	if errors.As(err, &fe) {
		return Outcome{Kind: fe.Kind, Message: fe.Msg}
	}
	return Outcome{Kind: KindInternal, Message: err.Error()}
}
