// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package variant

import "fmt"

// Kind classifies the failures this package reports.
type Kind int

const (
	// KindInvalidSignature: a signature failed to parse, or a builder
	// was given a non-concrete required type.
	KindInvalidSignature Kind = iota
	// KindFraming: serialized bytes do not frame the requested child.
	KindFraming
	// KindBuilderContract: a builder was fed the wrong number or type
	// of children. The builder stays in a well-defined state; Abort
	// is always safe.
	KindBuilderContract
	// KindUnnormalized: the normalise load flag was used on data that
	// is not in normal form.
	KindUnnormalized
	// KindOutOfRange: a child index at or beyond NChildren.
	KindOutOfRange
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSignature:
		return "invalid signature"
	case KindFraming:
		return "framing error"
	case KindBuilderContract:
		return "builder contract"
	case KindUnnormalized:
		return "unnormalized data"
	case KindOutOfRange:
		return "index out of range"
	}
	return "unknown"
}

// Error is the structured error for all failures in this package.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return "variant: " + e.Kind.String() + ": " + e.Msg
}

func errf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
