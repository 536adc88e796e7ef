// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package signature implements the type signature strings that name
// variant types.
//
/*

	A signature is a non-empty string generated by:

		S    := base | 'm' S | 'a' S | '(' S* ')' | '{' base S '}' | 'v'
		base := 'b' 'y' 'n' 'q' 'i' 'u' 'x' 't' 'd' 's' 'o' 'g' '?'

	plus the wildcards '*' (any single type) and 'r' (any structure).
	'm' is a maybe, 'a' an array, '(...)' a structure, '{k v}' a
	dictionary entry whose key is a basic type, and 'v' a boxed
	variant. '()' is the unit structure.

	The set of signatures is a prefix code: no signature is a prefix
	of another. Because of this a signature embedded in a larger
	string delimits itself, which is what lets member signatures be
	sliced out of a structure signature without copying. Functions in
	this package that take an interior cursor rely on Length to find
	the extent of the signature at the front of the string.

	A signature containing no wildcard is concrete. Only concrete
	signatures describe serializable values.
*/
package signature

import "errors"

// Class identifies the outermost constructor of a signature. Its value
// is the first byte of the signature, except for structures and
// dictionary entries which are identified by their opening bracket.
type Class byte

const (
	Bool       Class = 'b'
	Byte       Class = 'y'
	Int16      Class = 'n'
	Uint16     Class = 'q'
	Int32      Class = 'i'
	Uint32     Class = 'u'
	Int64      Class = 'x'
	Uint64     Class = 't'
	Double     Class = 'd'
	String     Class = 's'
	ObjectPath Class = 'o'
	Signature  Class = 'g'
	Variant    Class = 'v'
	Maybe      Class = 'm'
	Array      Class = 'a'
	Struct     Class = '('
	DictEntry  Class = '{'
	Any        Class = '*'
	AnyBasic   Class = '?'
	AnyStruct  Class = 'r'
)

// ErrInvalid is returned by Scan when the input is not a well-formed
// signature.
var ErrInvalid = errors.New("signature: invalid")

// IsBasic reports whether c is one of the basic (non-container)
// classes. The basic wildcard '?' counts as basic.
func IsBasic(c Class) bool {
	switch c {
	case Bool, Byte, Int16, Uint16, Int32, Uint32, Int64, Uint64,
		Double, String, ObjectPath, Signature, AnyBasic:
		return true
	}
	return false
}

// ClassOf returns the class of the signature starting at the front
// of s. The signature is assumed well formed.
func ClassOf(s string) Class {
	return Class(s[0])
}

// Scan advances past one complete signature starting at s[pos] and
// returns the position just beyond it. It fails if the string ends, a
// NUL is hit, or a malformed constructor is found before a complete
// signature has been consumed.
func Scan(s string, pos int) (int, error) {
	if pos >= len(s) {
		return pos, ErrInvalid
	}
	c := s[pos]
	pos++
	switch Class(c) {
	case Struct:
		for pos < len(s) && s[pos] != ')' {
			var err error
			pos, err = Scan(s, pos)
			if err != nil {
				return pos, err
			}
		}
		if pos >= len(s) {
			return pos, ErrInvalid
		}
		return pos + 1, nil

	case DictEntry:
		if pos >= len(s) || !IsBasic(Class(s[pos])) {
			return pos, ErrInvalid
		}
		pos++
		var err error
		pos, err = Scan(s, pos)
		if err != nil {
			return pos, err
		}
		if pos >= len(s) || s[pos] != '}' {
			return pos, ErrInvalid
		}
		return pos + 1, nil

	case Maybe, Array:
		return Scan(s, pos)

	case Bool, Byte, Int16, Uint16, Int32, Uint32, Int64, Uint64,
		Double, String, ObjectPath, Signature, Variant,
		Any, AnyBasic, AnyStruct:
		return pos, nil
	}
	return pos - 1, ErrInvalid
}

// IsValid reports whether s consists of exactly one well-formed
// signature.
func IsValid(s string) bool {
	end, err := Scan(s, 0)
	return err == nil && end == len(s)
}

// Length returns the number of bytes occupied by the complete
// signature at the front of s. It must only be called on strings that
// begin with a well-formed signature, such as interior cursors
// obtained from First or Next.
func Length(s string) int {
	end, err := Scan(s, 0)
	if err != nil {
		panic("signature: Length on malformed signature")
	}
	return end
}

// Head returns the complete signature at the front of cursor s.
func Head(s string) string {
	return s[:Length(s)]
}

// Hash computes a deterministic structural hash over the signature at
// the front of s.
func Hash(s string) uint32 {
	var h uint32
	for i := 0; i < Length(s); i++ {
		h = (h << 5) - h + uint32(s[i])
	}
	return h
}

// Equal reports whether two signatures are exactly equal, wildcards
// included.
func Equal(a, b string) bool {
	return a == b
}

// Concrete reports whether the signature at the front of s contains no
// wildcard positions.
func Concrete(s string) bool {
	for i := 0; i < Length(s); i++ {
		switch Class(s[i]) {
		case Any, AnyBasic, AnyStruct:
			return false
		}
	}
	return true
}

// Matches reports whether sig can be produced by expanding each
// wildcard position in pattern: '*' stands for any one signature, '?'
// for any one basic type and 'r' for any structure. Literal characters
// must match exactly. A concrete pattern matches only itself.
func Matches(pattern, sig string) bool {
	i, j := 0, 0
	for i < len(pattern) {
		if j >= len(sig) {
			return false
		}
		switch Class(pattern[i]) {
		case Any:
			next, err := Scan(sig, j)
			if err != nil {
				return false
			}
			j = next
		case AnyBasic:
			if !IsBasic(Class(sig[j])) {
				return false
			}
			j++
		case AnyStruct:
			if sig[j] != '(' && sig[j] != 'r' {
				return false
			}
			next, err := Scan(sig, j)
			if err != nil {
				return false
			}
			j = next
		default:
			if pattern[i] != sig[j] {
				return false
			}
			j++
		}
		i++
	}
	return j == len(sig)
}

// Element returns the element signature of an array or maybe
// signature. The result is a slice of s; it is not copied.
func Element(s string) string {
	if c := ClassOf(s); c != Array && c != Maybe {
		panic("signature: Element of non-array, non-maybe")
	}
	return Head(s[1:])
}

// Key returns the key signature of a dictionary entry signature.
func Key(s string) string {
	if ClassOf(s) != DictEntry {
		panic("signature: Key of non-dict-entry")
	}
	return Head(s[1:])
}

// Value returns the value signature of a dictionary entry signature.
func Value(s string) string {
	if ClassOf(s) != DictEntry {
		panic("signature: Value of non-dict-entry")
	}
	return Head(Next(s[1:]))
}

// First returns a cursor positioned at the first member of a structure
// or dictionary entry signature, or "" if the structure has no
// members. The member itself is Head(cursor).
func First(s string) string {
	if c := ClassOf(s); c != Struct && c != DictEntry {
		panic("signature: First of non-structure")
	}
	if s[1] == ')' {
		return ""
	}
	return s[1:]
}

// Next advances a member cursor to the following member, returning ""
// once the closing bracket is reached. The cursor must have come from
// First or a previous Next.
func Next(cur string) string {
	cur = cur[Length(cur):]
	if cur == "" || cur[0] == ')' || cur[0] == '}' {
		return ""
	}
	return cur
}

// NumItems returns the number of members in a structure signature.
func NumItems(s string) int {
	n := 0
	for cur := First(s); cur != ""; cur = Next(cur) {
		n++
	}
	return n
}

// ArrayOf forms the signature of an array with the given element
// signature.
func ArrayOf(element string) string {
	return "a" + element
}

// MaybeOf forms the signature of a maybe with the given element
// signature.
func MaybeOf(element string) string {
	return "m" + element
}

// TupleOf forms a structure signature from the member signatures in
// order.
func TupleOf(members ...string) string {
	n := 2
	for _, m := range members {
		n += len(m)
	}
	b := make([]byte, 0, n)
	b = append(b, '(')
	for _, m := range members {
		b = append(b, m...)
	}
	b = append(b, ')')
	return string(b)
}

// DictOf forms a dictionary entry signature from key and value
// signatures.
func DictOf(key, value string) string {
	return "{" + key + value + "}"
}
