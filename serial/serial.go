// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package serial reads and writes the contiguous byte frames that
// carry serialized values.
//
/*

	A frame holds the children of one composite value back to back,
	with zero padding between them for alignment, followed by an
	offset table that grows backwards from the end of the frame:

		[child 0][pad][child 1][pad]...[offset table]

	Offset entries are unsigned little-endian integers recording the
	END of each variable-sized child, measured from the frame start.
	All entries share one width (1, 2, 4 or 8 bytes): the smallest
	width w such that content + entries*w still fits in w bytes.

	Per class:

	fixed structure     children only, padded to the aggregate
	                    alignment; no table. The unit structure is a
	                    single zero byte.
	variable structure  one entry per variable-sized member except
	                    the last, in reverse member order.
	fixed array         children back to back; length is implied by
	                    the frame size.
	variable array      one entry per element, in element order: the
	                    last element's entry ends the frame.
	maybe               Nothing is the empty frame. Just is the child
	                    frame, followed by a single zero marker byte
	                    when the element type is variable-sized.
	variant             child frame, a zero separator, then the
	                    child's signature.

	Reading is zero-copy: Child returns a sub-slice of the parent
	frame. Malformed framing is detected here and surfaced as
	ErrFraming; the caller substitutes default values, so damage is
	confined to the branch that touched the bad bytes.
*/
package serial

import (
	"errors"

	"github.com/solidcoredata/variant/signature"
	"github.com/solidcoredata/variant/typeinfo"
)

var (
	// ErrFraming reports bytes whose framing does not describe the
	// child being extracted.
	ErrFraming = errors.New("serial: malformed framing")
	// ErrRange reports a child index outside the container.
	ErrRange = errors.New("serial: child index out of range")
)

// Serialised pairs a type with the frame holding one value of it.
// Data is nil only for damaged children; a valid zero-size frame is an
// empty, non-nil slice.
type Serialised struct {
	Info *typeinfo.Info
	Data []byte
}

// Filler describes one child to the serializer. It reports the
// child's type and serialized size, and when buf is non-nil it also
// writes the child's frame to buf[:size].
type Filler func(child interface{}, buf []byte) (info *typeinfo.Info, size int)

// determineSize applies the offset-width rule: the total frame size
// for contentEnd bytes of content and the given number of offset
// entries, using the smallest width that fits. A frame with no
// content is empty unless nonZero forces framing to exist.
func determineSize(contentEnd, offsets int, nonZero bool) int {
	if !nonZero && contentEnd == 0 {
		return 0
	}
	switch {
	case contentEnd+offsets <= 0xff:
		return contentEnd + offsets
	case contentEnd+offsets*2 <= 0xffff:
		return contentEnd + offsets*2
	case contentEnd+offsets*4 <= 0xffffffff:
		return contentEnd + offsets*4
	}
	return contentEnd + offsets*8
}

// offsetSize returns the offset entry width used by a frame of the
// given total size.
func offsetSize(size int) int {
	switch {
	case size == 0:
		return 0
	case size <= 0xff:
		return 1
	case size <= 0xffff:
		return 2
	case size <= 0xffffffff:
		return 4
	}
	return 8
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func getOffset(data []byte, pos, width int) int {
	v := 0
	for i := width - 1; i >= 0; i-- {
		v = v<<8 | int(data[pos+i])
	}
	return v
}

func putOffset(data []byte, pos, width, value int) {
	for i := 0; i < width; i++ {
		data[pos+i] = byte(value)
		value >>= 8
	}
}

// dereference reads offset table entry index, counting entries from
// the frame end. Entry -1 is defined as zero.
func dereference(s Serialised, index int) (int, bool) {
	if index == -1 {
		return 0, true
	}
	w := offsetSize(len(s.Data))
	if w == 0 {
		return 0, true
	}
	if index >= len(s.Data)/w {
		return 0, false
	}
	v := getOffset(s.Data, len(s.Data)-(index+1)*w, w)
	return v, v <= len(s.Data)
}

// arrayLength derives the element count of a variable-element array
// frame from its final offset entry.
func arrayLength(s Serialised) (int, bool) {
	w := offsetSize(len(s.Data))
	last := getOffset(s.Data, len(s.Data)-w, w)
	if last > len(s.Data) {
		return 0, false
	}
	rest := len(s.Data) - last
	if rest%w != 0 {
		return 0, false
	}
	return rest / w, true
}

// structEnd returns the end of the final member's content region:
// the frame end minus the offset entries stored before it.
func structEnd(s Serialised, nOffsets int) int {
	if len(s.Data) == 0 {
		return 0
	}
	return len(s.Data) - nOffsets*offsetSize(len(s.Data))
}

// sub slices a child frame out of its container. The returned Info
// carries a reference owned by the caller.
func sub(s Serialised, info *typeinfo.Info, start, end int) (Serialised, error) {
	if start <= end && end <= len(s.Data) {
		return Serialised{Info: info.Ref(), Data: s.Data[start:end]}, nil
	}
	return Serialised{Info: info.Ref()}, ErrFraming
}

func damaged(info *typeinfo.Info) (Serialised, error) {
	return Serialised{Info: info.Ref()}, ErrFraming
}

// NChildren returns the number of children encoded in the frame.
// Damaged framing reads as zero children.
func NChildren(s Serialised) int {
	switch s.Info.Class() {
	case signature.Variant:
		return 1

	case signature.Struct, signature.DictEntry:
		return s.Info.NumMembers()

	case signature.Maybe:
		if len(s.Data) == 0 {
			return 0
		}
		if fs := s.Info.Element().FixedSize(); fs > 0 && fs != len(s.Data) {
			return 0
		}
		return 1

	case signature.Array:
		if len(s.Data) == 0 {
			return 0
		}
		fs := s.Info.Element().FixedSize()
		if fs <= 0 {
			n, ok := arrayLength(s)
			if !ok {
				return 0
			}
			return n
		}
		if len(s.Data)%fs != 0 {
			return 0
		}
		return len(s.Data) / fs
	}
	panic("serial: NChildren of non-container")
}

// Child extracts child index from the frame without copying. The
// result shares s.Data; its Info reference is owned by the caller.
// ErrRange reports an index outside NChildren; ErrFraming reports
// damaged bytes, and the result then carries the expected type with
// nil data.
func Child(s Serialised, index int) (Serialised, error) {
	switch s.Info.Class() {
	case signature.Maybe:
		elem := s.Info.Element()
		if len(s.Data) == 0 || index > 0 {
			return Serialised{}, ErrRange
		}
		size := len(s.Data)
		if fs := elem.FixedSize(); fs > 0 {
			if size != fs {
				return damaged(elem)
			}
		} else {
			// strip the trailing Just marker
			size--
		}
		return sub(s, elem, 0, size)

	case signature.Array:
		elem := s.Info.Element()
		fs := elem.FixedSize()
		if fs <= 0 {
			if len(s.Data) == 0 {
				return Serialised{}, ErrRange
			}
			length, ok := arrayLength(s)
			if !ok {
				return damaged(elem)
			}
			if index >= length {
				return Serialised{}, ErrRange
			}
			start := 0
			if index > 0 {
				start, ok = dereference(s, length-index)
				if !ok {
					return damaged(elem)
				}
				start += -start & elem.Alignment()
			}
			end, ok := dereference(s, length-index-1)
			if !ok {
				return damaged(elem)
			}
			return sub(s, elem, start, end)
		}
		if len(s.Data)%fs != 0 {
			return damaged(elem)
		}
		if fs*(index+1) > len(s.Data) {
			return Serialised{}, ErrRange
		}
		return sub(s, elem, fs*index, fs*(index+1))

	case signature.Struct, signature.DictEntry:
		mi, ok := s.Info.Member(index)
		if !ok {
			return Serialised{}, ErrRange
		}
		start, ok := dereference(s, mi.Index)
		if !ok {
			return damaged(mi.Info)
		}
		start = (start+mi.Plus)&mi.And | mi.Or

		var end int
		switch {
		case mi.Size >= 0:
			end = start + mi.Size
		case mi.Size == typeinfo.MemberLast:
			end = structEnd(s, mi.Index+1)
		default: // typeinfo.MemberVariable
			end, ok = dereference(s, mi.Index+1)
			if !ok {
				return damaged(mi.Info)
			}
		}
		return sub(s, mi.Info, start, end)

	case signature.Variant:
		if index != 0 {
			return Serialised{}, ErrRange
		}
		// The frame is payload, a zero separator, then the signature.
		sep := len(s.Data) - 1
		for sep >= 0 && s.Data[sep] != 0 {
			sep--
		}

		var info *typeinfo.Info
		if sep >= 0 {
			// copy: the underlying buffer may be shared
			sigStr := string(s.Data[sep+1:])
			if i, err := typeinfo.Get(sigStr); err == nil {
				info = i
			}
		}
		if info == nil {
			// unreadable signature: substitute the unit type so
			// deserialization stays total
			info = typeinfo.MustGet("()")
			if sep < 0 {
				sep = 0
			}
		}

		if fs := info.FixedSize(); fs >= 0 && fs != sep {
			defer info.Unref()
			return damaged(info)
		}
		sv, err := sub(s, info, 0, sep)
		info.Unref()
		return sv, err
	}
	panic("serial: Child of non-container")
}

// NeededSize computes the frame size the children will occupy,
// consulting the filler for each child's size.
func NeededSize(info *typeinfo.Info, filler Filler, children []interface{}) int {
	switch info.Class() {
	case signature.Variant:
		ci, size := filler(children[0], nil)
		return size + 1 + len(ci.Signature())

	case signature.Maybe:
		if len(children) == 0 {
			return 0
		}
		if fs := info.Element().FixedSize(); fs > 0 {
			return fs
		}
		_, size := filler(children[0], nil)
		return size + 1

	case signature.Array:
		if len(children) == 0 {
			return 0
		}
		elem := info.Element()
		if fs := elem.FixedSize(); fs > 0 {
			return fs * len(children)
		}
		align := elem.Alignment()
		offset := 0
		for _, c := range children {
			_, size := filler(c, nil)
			offset += -offset & align
			offset += size
		}
		return determineSize(offset, len(children), true)

	case signature.Struct, signature.DictEntry:
		if fs := info.FixedSize(); fs >= 0 {
			return fs
		}
		offset, nOffsets := 0, 0
		for i, c := range children {
			mi, _ := info.Member(i)
			_, size := filler(c, nil)
			if mi.Info.FixedSize() < 0 {
				offset += -offset & mi.Info.Alignment()
				offset += size
				if i != len(children)-1 {
					nOffsets++
				}
			} else {
				offset += -offset & mi.Info.Alignment()
				offset += mi.Info.FixedSize()
			}
		}
		return determineSize(offset, nOffsets, false)
	}
	panic("serial: NeededSize of non-container")
}

// Serialise writes the children into s.Data, which must be exactly
// NeededSize bytes. Padding and offset entries are produced here; the
// filler writes each child's own frame.
func Serialise(s Serialised, filler Filler, children []interface{}) {
	switch s.Info.Class() {
	case signature.Variant:
		ci, size := filler(children[0], s.Data)
		s.Data[size] = 0
		copy(s.Data[size+1:], ci.Signature())

	case signature.Maybe:
		if len(children) == 0 {
			return
		}
		elem := s.Info.Element()
		_, size := filler(children[0], s.Data)
		if fs := elem.FixedSize(); fs <= 0 {
			s.Data[size] = 0
		} else {
			// a short child leaves zero bytes up to the fixed size
			zero(s.Data[size:fs])
		}

	case signature.Array:
		if len(children) == 0 {
			return
		}
		elem := s.Info.Element()
		align := elem.Alignment()
		fs := elem.FixedSize()
		w := offsetSize(len(s.Data))

		bound := len(s.Data)
		if fs <= 0 {
			bound -= w * len(children)
		}
		optr := bound

		pos := 0
		for _, c := range children {
			if pos < bound {
				for pos&align != 0 {
					s.Data[pos] = 0
					pos++
				}
			}
			_, size := filler(c, s.Data[pos:])
			if fs > 0 {
				zero(s.Data[pos+size : pos+fs])
				pos += fs
			} else {
				pos += size
				putOffset(s.Data, optr, w, pos)
				optr += w
			}
		}

	case signature.Struct, signature.DictEntry:
		if len(children) == 0 {
			// the unit structure: a single zero byte
			for i := range s.Data {
				s.Data[i] = 0
			}
			return
		}
		w := offsetSize(len(s.Data))
		optr := len(s.Data)
		pos := 0
		fixed := true

		for i, c := range children {
			mi, _ := s.Info.Member(i)
			start := pos + (-pos & mi.Info.Alignment())
			_, size := filler(c, s.Data[start:])

			if fs := mi.Info.FixedSize(); fs >= 0 {
				// the declared size governs the layout; a short
				// child leaves zero bytes behind
				zero(s.Data[pos:start])
				zero(s.Data[start+size : start+fs])
				pos = start + fs
				continue
			}

			zero(s.Data[pos:start])
			pos = start + size

			fixed = false
			if i != len(children)-1 {
				optr -= w
				putOffset(s.Data, optr, w, pos)
			}
		}

		if fixed {
			zero(s.Data[pos:])
		}

	default:
		panic("serial: Serialise of non-container")
	}
}

// Byteswap reverses the byte order of every primitive in the frame,
// in place. Applying it twice is the identity.
func Byteswap(s Serialised) {
	if s.Data == nil {
		return
	}
	align := s.Info.Alignment()
	if align == 0 {
		// strings, bytes and booleans carry no byte order
		return
	}

	// a fixed size equal to alignment+1 means a bare primitive
	if fs := s.Info.FixedSize(); align+1 == fs {
		if len(s.Data) == fs {
			for i, j := 0, fs-1; i < j; i, j = i+1, j-1 {
				s.Data[i], s.Data[j] = s.Data[j], s.Data[i]
			}
		}
		return
	}

	n := NChildren(s)
	for i := 0; i < n; i++ {
		child, err := Child(s, i)
		if err == nil {
			Byteswap(child)
		}
		if child.Info != nil {
			child.Info.Unref()
		}
	}
}
