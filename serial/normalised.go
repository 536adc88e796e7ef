// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package serial

import (
	"bytes"

	"github.com/solidcoredata/variant/signature"
	"github.com/solidcoredata/variant/typeinfo"
)

// IsNormalised reports whether the frame is in normal form: primitives
// hold legal values, every pad byte is zero, offset tables use the
// smallest possible width, children are in order and themselves
// normal. Serializing a tree of normal values always produces normal
// frames; this check is for bytes of unknown origin.
func IsNormalised(s Serialised) bool {
	if s.Data == nil {
		return false
	}
	switch s.Info.Class() {
	case signature.Byte, signature.Int16, signature.Uint16,
		signature.Int32, signature.Uint32, signature.Int64,
		signature.Uint64, signature.Double:
		return len(s.Data) == s.Info.FixedSize()

	case signature.Bool:
		return len(s.Data) == 1 && s.Data[0] <= 1

	case signature.String:
		return isNormalString(s.Data)

	case signature.ObjectPath:
		return isNormalString(s.Data) && isObjectPath(string(s.Data[:len(s.Data)-1]))

	case signature.Signature:
		return isNormalString(s.Data) && isSignatureBundle(string(s.Data[:len(s.Data)-1]))

	case signature.Maybe:
		if len(s.Data) == 0 {
			return true
		}
		elem := s.Info.Element()
		if fs := elem.FixedSize(); fs > 0 {
			if len(s.Data) != fs {
				return false
			}
			return IsNormalised(Serialised{Info: elem, Data: s.Data})
		}
		if s.Data[len(s.Data)-1] != 0 {
			return false
		}
		return IsNormalised(Serialised{Info: elem, Data: s.Data[:len(s.Data)-1]})

	case signature.Array:
		return isNormalArray(s)

	case signature.Struct, signature.DictEntry:
		return isNormalStruct(s)

	case signature.Variant:
		return isNormalVariant(s)
	}
	return false
}

func isNormalString(b []byte) bool {
	return len(b) > 0 && b[len(b)-1] == 0 && bytes.IndexByte(b[:len(b)-1], 0) == -1
}

// isObjectPath checks "/" or "/"-separated nonempty segments of
// [A-Za-z0-9_] with no trailing slash.
func isObjectPath(p string) bool {
	if p == "/" {
		return true
	}
	if len(p) == 0 || p[0] != '/' {
		return false
	}
	seg := 0
	for i := 1; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '/':
			if seg == 0 {
				return false
			}
			seg = 0
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9', c == '_':
			seg++
		default:
			return false
		}
	}
	return seg > 0
}

// isSignatureBundle checks a concatenation of zero or more complete
// concrete signatures.
func isSignatureBundle(s string) bool {
	pos := 0
	for pos < len(s) {
		next, err := signature.Scan(s, pos)
		if err != nil || !signature.Concrete(s[pos:next]) {
			return false
		}
		pos = next
	}
	return true
}

func isNormalArray(s Serialised) bool {
	if len(s.Data) == 0 {
		return true
	}
	elem := s.Info.Element()

	if fs := elem.FixedSize(); fs > 0 {
		if len(s.Data)%fs != 0 {
			return false
		}
		for off := 0; off < len(s.Data); off += fs {
			if !IsNormalised(Serialised{Info: elem, Data: s.Data[off : off+fs]}) {
				return false
			}
		}
		return true
	}

	length, ok := arrayLength(s)
	if !ok || length == 0 {
		return false
	}
	w := offsetSize(len(s.Data))
	contentEnd := getOffset(s.Data, len(s.Data)-w, w)
	if len(s.Data) != determineSize(contentEnd, length, true) {
		return false
	}

	align := elem.Alignment()
	prevEnd := 0
	for k := 0; k < length; k++ {
		start := prevEnd + (-prevEnd & align)
		end, ok := dereference(s, length-k-1)
		if !ok || start > end || end > contentEnd {
			return false
		}
		for i := prevEnd; i < start; i++ {
			if s.Data[i] != 0 {
				return false
			}
		}
		if !IsNormalised(Serialised{Info: elem, Data: s.Data[start:end]}) {
			return false
		}
		prevEnd = end
	}
	return prevEnd == contentEnd
}

func isNormalStruct(s Serialised) bool {
	info := s.Info
	if fs := info.FixedSize(); fs >= 0 {
		if len(s.Data) != fs {
			return false
		}
		if info.NumMembers() == 0 {
			// the unit structure
			return s.Data[0] == 0
		}
	}

	nOffsets := 0
	for i := 0; i < info.NumMembers(); i++ {
		if mi, _ := info.Member(i); mi.Size == typeinfo.MemberVariable {
			nOffsets++
		}
	}

	contentEnd := len(s.Data)
	if info.FixedSize() < 0 {
		contentEnd = structEnd(s, nOffsets)
		if contentEnd < 0 {
			return false
		}
		if len(s.Data) != determineSize(contentEnd, nOffsets, false) {
			return false
		}
	}

	prevEnd := 0
	for i := 0; i < info.NumMembers(); i++ {
		mi, _ := info.Member(i)
		start, ok := dereference(s, mi.Index)
		if !ok {
			return false
		}
		start = (start+mi.Plus)&mi.And | mi.Or

		var end int
		switch {
		case mi.Size >= 0:
			end = start + mi.Size
		case mi.Size == typeinfo.MemberLast:
			end = structEnd(s, mi.Index+1)
		default:
			end, ok = dereference(s, mi.Index+1)
			if !ok {
				return false
			}
		}
		if start > end || end > contentEnd || start < prevEnd {
			return false
		}
		for k := prevEnd; k < start; k++ {
			if s.Data[k] != 0 {
				return false
			}
		}
		if !IsNormalised(Serialised{Info: mi.Info, Data: s.Data[start:end]}) {
			return false
		}
		prevEnd = end
	}

	if info.FixedSize() >= 0 {
		for k := prevEnd; k < len(s.Data); k++ {
			if s.Data[k] != 0 {
				return false
			}
		}
		return true
	}
	return prevEnd == contentEnd
}

func isNormalVariant(s Serialised) bool {
	child, err := Child(s, 0)
	if child.Info != nil {
		defer child.Info.Unref()
	}
	if err != nil {
		return false
	}
	// the frame must be exactly payload + separator + signature
	if len(child.Data)+1+len(child.Info.Signature()) != len(s.Data) {
		return false
	}
	return IsNormalised(child)
}
