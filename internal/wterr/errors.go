// Package wterr defines the structured error kinds surfaced by worktree
// operations. Every failure returned to a tool caller carries one of these
// kinds so the caller can decide whether to commit, push, or retry.
package wterr

import (
	"errors"
	"fmt"
	"strings"
)

// Op describes an operation, usually as "package.Function".
type Op string

// Kind categorizes a failure. The string value is part of the tool contract.
type Kind string

const (
	KindUnknown         Kind = ""
	VcsOperationFailed  Kind = "VcsOperationFailed"
	TerminalUnavailable Kind = "TerminalUnavailable"
	WorktreeNotFound    Kind = "WorktreeNotFound"
	BranchConflict      Kind = "BranchConflict"
	NotClean            Kind = "NotClean"
	NotPushed           Kind = "NotPushed"
	NoOpenTab           Kind = "NoOpenTab"
	TabNotFound         Kind = "TabNotFound"
	MergeConflict       Kind = "MergeConflict"
	OperationTimedOut   Kind = "OperationTimedOut"
	InvalidArgument     Kind = "InvalidArgument"
)

func (k Kind) String() string {
	if k == KindUnknown {
		return "Unknown"
	}
	return string(k)
}

// Details lists the specific unmet conditions behind an error, such as
// uncommitted files or conflicting paths.
type Details []string

// Error is the structured error type.
type Error struct {
	Op      Op
	Kind    Kind
	Message string
	Details Details
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	switch {
	case e.Message != "" && e.Err != nil:
		fmt.Fprintf(&b, "%s: %v", e.Message, e.Err)
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error. Arguments may be, in any order:
//   - Op: the operation name
//   - Kind: the error kind
//   - string: the human-readable message
//   - Details: the unmet conditions
//   - error: the underlying cause
func E(args ...any) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case string:
			e.Message = a
		case Details:
			e.Details = a
		case []string:
			e.Details = Details(a)
		case error:
			e.Err = a
		}
	}
	// Inherit the kind of a wrapped structured error.
	if e.Kind == KindUnknown && e.Err != nil {
		e.Kind = KindOf(e.Err)
	}
	return e
}

// Is reports whether any error in err's chain has the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the outermost structured error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return KindUnknown
		}
		if e.Kind != KindUnknown {
			return e.Kind
		}
		err = e.Err
	}
	return KindUnknown
}

// DetailsOf collects the details attached anywhere in err's chain.
func DetailsOf(err error) []string {
	var out []string
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		out = append(out, e.Details...)
		err = e.Err
	}
	return out
}
