// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package typeinfo compiles signatures into per-type records carrying
// the alignment and fixed-size metadata the serializer needs, and for
// structures the per-member offset arithmetic.
//
// Records are interned in a process-wide table keyed by signature and
// reference counted. The final Unref removes the table entry before
// the record becomes unreachable, so a lookup can never observe a
// dying record. A small LRU of recently requested records holds one
// reference of its own, keeping hot types alive across release and
// re-request cycles.
package typeinfo

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/solidcoredata/variant/signature"
)

// ErrBadSignature is returned by Get for strings that are not valid
// concrete signatures.
var ErrBadSignature = errors.New("typeinfo: not a valid concrete signature")

// Sentinels for MemberInfo.Size.
const (
	// MemberVariable marks a variable-sized member that is not last:
	// its end is read from the next offset table entry.
	MemberVariable = -1
	// MemberLast marks the final member when it is variable-sized: its
	// end is the container end minus the preceding offset entries.
	MemberLast = -2
)

// MemberInfo locates one structure or dictionary entry member inside
// a serialized frame. The start of the member is
//
//	start = (offsets[Index] + Plus) & And | Or
//
// where offsets[-1] is zero: Index is -1 when the start follows from
// alignment alone.
type MemberInfo struct {
	Info  *Info
	Index int
	Plus  int
	And   int
	Or    int
	Size  int
}

// Info is the compiled record for one concrete type.
type Info struct {
	sig       string
	class     signature.Class
	alignment int // mask: required alignment - 1
	fixedSize int // -1 when values of the type vary in size
	element   *Info
	members   []MemberInfo
	refs      int32
}

var table = struct {
	sync.Mutex
	m map[string]*Info
}{m: make(map[string]*Info)}

var (
	recentMu sync.Mutex
	recent   *lru.Cache
)

const recentSize = 64

func init() {
	c, err := lru.NewWithEvict(recentSize, func(_, v interface{}) {
		v.(*Info).Unref()
	})
	if err != nil {
		panic(err)
	}
	recent = c
}

// Get returns the interned record for sig, creating it on first use.
// The caller owns one reference and must release it with Unref.
func Get(sig string) (*Info, error) {
	if !signature.IsValid(sig) || !signature.Concrete(sig) {
		return nil, ErrBadSignature
	}
	table.Lock()
	info := getLocked(sig)
	table.Unlock()

	recentMu.Lock()
	if !recent.Contains(info.sig) {
		recent.Add(info.sig, info.Ref())
	}
	recentMu.Unlock()

	return info, nil
}

// MustGet is Get for signatures known to be valid and concrete.
func MustGet(sig string) *Info {
	info, err := Get(sig)
	if err != nil {
		panic(err)
	}
	return info
}

// getLocked interns the record for a signature that has already been
// validated. Creation recurses here for element and member records;
// the table lock is held across the whole construction.
func getLocked(sig string) *Info {
	if info, ok := table.m[sig]; ok {
		atomic.AddInt32(&info.refs, 1)
		return info
	}

	info := &Info{
		sig:   strings.Clone(sig),
		class: signature.ClassOf(sig),
		refs:  1,
	}

	switch info.class {
	case signature.Maybe, signature.Array:
		info.element = getLocked(signature.Element(sig))
		info.alignment = info.element.alignment
		info.fixedSize = -1

	case signature.Struct, signature.DictEntry:
		buildStructLocked(info)

	case signature.Bool, signature.Byte:
		info.alignment, info.fixedSize = 0, 1
	case signature.Int16, signature.Uint16:
		info.alignment, info.fixedSize = 1, 2
	case signature.Int32, signature.Uint32:
		info.alignment, info.fixedSize = 3, 4
	case signature.Int64, signature.Uint64, signature.Double:
		info.alignment, info.fixedSize = 7, 8
	case signature.String, signature.ObjectPath, signature.Signature:
		info.alignment, info.fixedSize = 0, -1
	case signature.Variant:
		info.alignment, info.fixedSize = 7, -1
	}

	table.m[info.sig] = info
	return info
}

// buildStructLocked walks the members accumulating the running
// alignment mask and the fixed-offset bits that fall above and below
// it, recording {index, plus, and, or, size} for each member.
func buildStructLocked(info *Info) {
	alignment := 0
	fixed := true

	aligned := 0
	before := 0
	after := 0
	index := -1

	for cur := signature.First(info.sig); cur != ""; cur = signature.Next(cur) {
		m := getLocked(signature.Head(cur))

		alignment |= m.alignment

		// align for the start of the member
		if m.alignment > aligned {
			before += after + (-after & aligned) + m.alignment
			aligned = m.alignment
			after = 0
		} else {
			after += -after & m.alignment
		}

		// shift bits of 'after' that fall outside the mask into
		// 'before'; only bits under the mask survive in 'or'
		before += after &^ aligned
		after &= aligned

		mi := MemberInfo{
			Info:  m,
			Index: index,
			Plus:  before,
			And:   ^aligned,
			Or:    after,
		}

		if m.fixedSize < 0 {
			mi.Size = MemberVariable
			fixed = false
			aligned, before, after = 0, 0, 0
			index++
		} else {
			mi.Size = m.fixedSize
			after += m.fixedSize
		}

		info.members = append(info.members, mi)
	}

	// the offset of a variable-sized final member is not stored
	if n := len(info.members); n > 0 && info.members[n-1].Size == MemberVariable {
		info.members[n-1].Size = MemberLast
	}

	info.alignment = alignment
	if fixed {
		// 'after' bits were not shifted into 'before' here, so add:
		// there may be overlap.
		size := before&^aligned + after
		size += -size & alignment
		if size == 0 {
			size = 1
		}
		info.fixedSize = size
	} else {
		info.fixedSize = -1
	}
}

// Ref acquires an additional reference and returns the same record.
func (i *Info) Ref() *Info {
	atomic.AddInt32(&i.refs, 1)
	return i
}

// Unref releases one reference. On the last release the record is
// removed from the interning table and its element or member
// references are released in turn.
func (i *Info) Unref() {
	if atomic.AddInt32(&i.refs, -1) != 0 {
		return
	}
	table.Lock()
	// A concurrent Get may have resurrected the record between the
	// decrement and here.
	if atomic.LoadInt32(&i.refs) != 0 {
		table.Unlock()
		return
	}
	delete(table.m, i.sig)
	table.Unlock()

	if i.element != nil {
		i.element.Unref()
	}
	for _, m := range i.members {
		m.Info.Unref()
	}
}

// Signature returns the signature the record was compiled from.
func (i *Info) Signature() string { return i.sig }

// Class returns the outermost constructor of the type.
func (i *Info) Class() signature.Class { return i.class }

// Alignment returns the alignment mask: required alignment minus one.
func (i *Info) Alignment() int { return i.alignment }

// FixedSize returns the serialized size shared by all values of the
// type, or -1 when values vary in size.
func (i *Info) FixedSize() int { return i.fixedSize }

// Element returns the element record of an array or maybe type.
func (i *Info) Element() *Info {
	if i.element == nil {
		panic("typeinfo: Element of non-array, non-maybe type")
	}
	return i.element
}

// NumMembers returns the member count of a structure or dictionary
// entry type.
func (i *Info) NumMembers() int { return len(i.members) }

// Member returns the member record at index, reporting false when the
// index is out of range.
func (i *Info) Member(index int) (MemberInfo, bool) {
	if index < 0 || index >= len(i.members) {
		return MemberInfo{}, false
	}
	return i.members[index], true
}

// flushRecent drops the hot-type cache's references. Tests use this to
// observe true last-release behavior.
func flushRecent() {
	recentMu.Lock()
	recent.Purge()
	recentMu.Unlock()
}

// cached reports whether a record for sig is currently interned.
func cached(sig string) bool {
	table.Lock()
	_, ok := table.m[sig]
	table.Unlock()
	return ok
}
