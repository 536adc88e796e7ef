// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package variant implements a self-describing tagged value: each
// value carries both its data and its type, and serializes losslessly
// to the compact byte frames described in package serial.
//
// A value is immutable from the caller's point of view. Internally it
// is in one of three storage forms: the bytes inline in the handle
// (at most 8 of them), a byte buffer (owned outright, or a slice of
// another value's buffer that it keeps alive), or a tree of child
// values that has not been serialized yet. Reading the data of a tree
// value serializes it on demand, exactly once; reading a child of a
// serialized value returns a new value sharing the same buffer.
//
// Values are safe for concurrent use. The rare mutating transitions
// (flattening a tree, memoizing its size, the one-shot byte order
// flip) happen under a per-value meta-lock.
package variant

import (
	"sync"
	"sync/atomic"

	"github.com/solidcoredata/variant/serial"
	"github.com/solidcoredata/variant/signature"
	"github.com/solidcoredata/variant/typeinfo"
)

type representation uint32

const (
	reprSmall representation = iota
	reprLarge
	reprTree
)

// smallSize is the largest byte count that values store inline in the
// handle.
const smallSize = 8

const (
	flagNative uint32 = 1 << iota
	flagTrusted
)

// Value is a reference-counted handle on one typed value.
type Value struct {
	info *typeinfo.Info
	refs int32

	// repr and flags are atomics: readers peek without the meta-lock
	// and must re-check after acquiring it, since a tree can collapse
	// to serialized form at any moment they do not hold the lock.
	repr  uint32
	flags uint32

	locked bool // guarded by metaMu

	small    [smallSize]byte
	smallLen uint8

	data   []byte
	source *Value // the buffer owner, when data is a shared slice

	children       []*Value
	serialisedSize int
}

func (v *Value) rep() representation {
	return representation(atomic.LoadUint32(&v.repr))
}

func (v *Value) setRep(r representation) {
	atomic.StoreUint32(&v.repr, uint32(r))
}

func (v *Value) isNative() bool {
	return atomic.LoadUint32(&v.flags)&flagNative != 0
}

func (v *Value) isTrusted() bool {
	return atomic.LoadUint32(&v.flags)&flagTrusted != 0
}

func (v *Value) setFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&v.flags)
		if atomic.CompareAndSwapUint32(&v.flags, old, old|f) {
			return
		}
	}
}

func (v *Value) clearFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&v.flags)
		if atomic.CompareAndSwapUint32(&v.flags, old, old&^f) {
			return
		}
	}
}

// The meta-lock: one logical lock bit per value, carried by a single
// process-wide mutex and a short wait list for the contended case. An
// uncontended acquire touches only the mutex and the bit.

var (
	metaMu     sync.Mutex
	contention []*waiter
)

type waiter struct {
	value *Value
	cond  *sync.Cond
	clear bool
}

func (v *Value) lock() {
	metaMu.Lock()
	if v.locked {
		w := &waiter{value: v, cond: sync.NewCond(&metaMu)}
		contention = append(contention, w)
		for !w.clear {
			w.cond.Wait()
		}
		for i, x := range contention {
			if x == w {
				contention = append(contention[:i], contention[i+1:]...)
				break
			}
		}
	} else {
		v.locked = true
	}
	metaMu.Unlock()
}

func (v *Value) unlock() {
	metaMu.Lock()
	for _, w := range contention {
		if w.value == v && !w.clear {
			// hand the lock bit straight to the waiter
			w.clear = true
			w.cond.Signal()
			metaMu.Unlock()
			return
		}
	}
	v.locked = false
	metaMu.Unlock()
}

// Ref acquires an additional reference and returns the same value.
func (v *Value) Ref() *Value {
	atomic.AddInt32(&v.refs, 1)
	return v
}

// Unref releases one reference. The last release returns the value's
// type-info reference to the interning table and drops child or
// source references.
func (v *Value) Unref() {
	if atomic.AddInt32(&v.refs, -1) != 0 {
		return
	}
	v.info.Unref()
	switch v.rep() {
	case reprLarge:
		if v.source != nil {
			v.source.Unref()
		}
	case reprTree:
		for _, c := range v.children {
			c.Unref()
		}
	}
}

// newValue is the only allocator of Value. info is an owned reference
// transferred into the value.
func newValue(r representation, info *typeinfo.Info) *Value {
	return &Value{
		info: info,
		refs: 1,
		repr: uint32(r),
	}
}

// newTree wraps children (ownership transferred) into an unserialized
// composite value.
func newTree(info *typeinfo.Info, children []*Value, trusted bool) *Value {
	v := newValue(reprTree, info)
	v.children = children
	v.serialisedSize = -1
	v.flags = flagNative
	if trusted {
		v.flags |= flagTrusted
	}
	return v
}

// newSerialised wraps data (ownership transferred) choosing the inline
// or owned-buffer form by size.
func newSerialised(info *typeinfo.Info, data []byte) *Value {
	if len(data) <= smallSize {
		v := newValue(reprSmall, info)
		copy(v.small[:], data)
		v.smallLen = uint8(len(data))
		v.flags = flagNative
		return v
	}
	v := newValue(reprLarge, info)
	v.data = data
	v.flags = flagNative
	return v
}

// Signature returns the value's type signature.
func (v *Value) Signature() string {
	return v.info.Signature()
}

// Class returns the outermost constructor of the value's type.
func (v *Value) Class() signature.Class {
	return v.info.Class()
}

// Matches reports whether the value's type matches the possibly
// abstract signature pattern.
func (v *Value) Matches(pattern string) bool {
	return signature.Matches(pattern, v.info.Signature())
}

// IsNormalised reports whether the value is definitely in normal
// form. It can flip from false to true over the value's lifetime,
// never the reverse.
func (v *Value) IsNormalised() bool {
	return v.isTrusted()
}

// fill is the serializer callback describing one child value.
func fill(child interface{}, buf []byte) (*typeinfo.Info, int) {
	c := child.(*Value)
	size := c.Size()
	if buf != nil && size > 0 {
		c.Store(buf[:size])
	}
	return c.info, size
}

func (v *Value) treeChildren() []interface{} {
	cc := make([]interface{}, len(v.children))
	for i, c := range v.children {
		cc[i] = c
	}
	return cc
}

// Size returns the serialized size of the value in bytes. For a tree
// the first call computes and memoizes it; afterwards Size is O(1).
func (v *Value) Size() int {
	for {
		switch v.rep() {
		case reprTree:
			v.lock()
			if v.rep() != reprTree {
				v.unlock()
				continue
			}
			if v.serialisedSize == -1 {
				v.serialisedSize = serial.NeededSize(v.info, fill, v.treeChildren())
			}
			size := v.serialisedSize
			v.unlock()
			return size

		case reprSmall:
			return int(v.smallLen)

		default:
			return len(v.data)
		}
	}
}

// Store writes the value's frame to dst, which must hold at least
// Size bytes. The written bytes are in machine byte order; they are in
// normal form whenever the value is.
func (v *Value) Store(dst []byte) error {
	size := v.Size()
	if len(dst) < size {
		return errf(KindOutOfRange, "store into %d bytes, need %d", len(dst), size)
	}
	for {
		switch v.rep() {
		case reprTree:
			v.lock()
			if v.rep() != reprTree {
				v.unlock()
				continue
			}
			serial.Serialise(serial.Serialised{Info: v.info, Data: dst[:size]},
				fill, v.treeChildren())
			v.unlock()
			return nil

		case reprSmall:
			copy(dst, v.small[:v.smallLen])
			return nil

		default:
			v.ensureNativeEndian()
			copy(dst, v.data)
			return nil
		}
	}
}

// Data returns the serialized form of the value in machine byte
// order. A tree serializes here, once: its children are released and
// the value switches to the serialized form. The returned slice stays
// valid and unchanged for the value's lifetime.
func (v *Value) Data() []byte {
	for {
		switch v.rep() {
		case reprTree:
			size := v.Size()
			v.lock()
			if v.rep() != reprTree {
				v.unlock()
				continue
			}
			children := v.children
			cc := v.treeChildren()

			var buf []byte
			if size <= smallSize {
				v.smallLen = uint8(size)
				buf = v.small[:size]
			} else {
				buf = make([]byte, size)
				v.data = buf
			}
			serial.Serialise(serial.Serialised{Info: v.info, Data: buf}, fill, cc)

			v.setFlag(flagNative)
			v.children = nil
			if size <= smallSize {
				v.setRep(reprSmall)
			} else {
				v.setRep(reprLarge)
			}
			v.unlock()

			for _, c := range children {
				c.Unref()
			}
			return buf

		case reprSmall:
			return v.small[:v.smallLen]

		default:
			v.ensureNativeEndian()
			return v.data
		}
	}
}

// Flatten forces the value into serialized form.
func (v *Value) Flatten() {
	v.Data()
}

// getGSV snapshots the serialized bytes of a non-tree value together
// with a reference to the value that owns the buffer. The bytes stay
// valid until the returned owner is unreffed.
func (v *Value) getGSV() (serial.Serialised, *Value) {
	switch v.rep() {
	case reprSmall:
		return serial.Serialised{Info: v.info, Data: v.small[:v.smallLen]}, v.Ref()

	case reprLarge:
		if v.source != nil {
			// ensureNativeEndian can detach the source at any moment
			// we are unlocked
			v.lock()
			var src *Value
			if v.source != nil {
				src = v.source.Ref()
			} else {
				src = v.Ref()
			}
			data := v.data
			v.unlock()
			return serial.Serialised{Info: v.info, Data: data}, src
		}
		return serial.Serialised{Info: v.info, Data: v.data}, v.Ref()
	}
	panic("variant: getGSV of tree value")
}

// copySafely copies bytes owned by source into dst and reports
// whether the copied bytes are in native byte order, coping with a
// byte swap racing the copy.
func copySafely(source *Value, dst, src []byte) bool {
	if source.rep() == reprSmall {
		copy(dst, src)
		return true
	}
	if !source.isNative() {
		copy(dst, src)
		// barrier: any in-progress swap completes before we re-check
		source.lock()
		source.unlock()
	}
	if source.isNative() {
		copy(dst, src)
		return true
	}
	return false
}

// fromGSV wraps extracted child bytes into a value. Small children
// are copied; larger ones share the owner's buffer and keep owner
// alive. The Info reference in gsv is transferred into the result.
func fromGSV(gsv serial.Serialised, owner *Value, trusted bool) *Value {
	if len(gsv.Data) <= smallSize {
		v := newValue(reprSmall, gsv.Info)
		v.smallLen = uint8(len(gsv.Data))
		v.flags = flagNative
		if len(gsv.Data) > 0 {
			if !copySafely(owner, v.small[:v.smallLen], gsv.Data) {
				// inline values are always native: swap the copy now
				serial.Byteswap(serial.Serialised{Info: gsv.Info, Data: v.small[:v.smallLen]})
			}
		}
		if trusted || owner.isTrusted() {
			v.flags |= flagTrusted
		}
		return v
	}

	v := newValue(reprLarge, gsv.Info)
	v.source = owner.Ref()
	v.data = gsv.Data
	if owner.isNative() {
		v.flags = flagNative
	}
	if trusted || owner.isTrusted() {
		v.flags |= flagTrusted
	}
	return v
}

// defaultValue materializes the zero value of a type, used when child
// extraction hits damaged framing. The Info reference is transferred.
func defaultValue(info *typeinfo.Info) *Value {
	size := info.FixedSize()
	if size <= smallSize {
		v := newValue(reprSmall, info)
		v.flags = flagNative
		if size >= 0 {
			v.smallLen = uint8(size)
			v.flags |= flagTrusted
		}
		return v
	}
	v := newValue(reprLarge, info)
	v.data = make([]byte, size)
	v.flags = flagNative
	return v
}

// NChildren returns the number of children of a composite value: 1
// for a variant, 0 or 1 for a maybe, the length for an array, the
// member count for a structure or dictionary entry.
func (v *Value) NChildren() int {
	for {
		if v.rep() == reprTree {
			v.lock()
			if v.rep() != reprTree {
				v.unlock()
				continue
			}
			n := len(v.children)
			v.unlock()
			return n
		}
		gsv, owner := v.getGSV()
		n := serial.NChildren(gsv)
		owner.Unref()
		return n
	}
}

// Child returns the child value at index. On a tree this is the
// stored child; on a serialized value the child is decoded from the
// frame and shares the buffer. Damaged framing produces a zero value
// of the expected type rather than an error; an index at or beyond
// NChildren is KindOutOfRange.
func (v *Value) Child(index int) (*Value, error) {
	if index < 0 {
		return nil, errf(KindOutOfRange, "child %d", index)
	}
	for {
		if v.rep() == reprTree {
			v.lock()
			if v.rep() != reprTree {
				v.unlock()
				continue
			}
			if index < 0 || index >= len(v.children) {
				n := len(v.children)
				v.unlock()
				return nil, errf(KindOutOfRange, "child %d of %d", index, n)
			}
			child := v.children[index].Ref()
			v.unlock()
			return child, nil
		}

		gsv, owner := v.getGSV()
		child, err := serial.Child(gsv, index)
		switch err {
		case nil:
			cv := fromGSV(child, owner, v.isTrusted())
			owner.Unref()
			return cv, nil
		case serial.ErrFraming:
			owner.Unref()
			return defaultValue(child.Info), nil
		default:
			owner.Unref()
			return nil, errf(KindOutOfRange, "child %d of %d", index, v.NChildren())
		}
	}
}

// ensureNativeEndian performs the one-shot flip of the value's bytes
// into machine byte order. Once it returns, the value reads native
// forever; the swap happens at most once per buffer.
func (v *Value) ensureNativeEndian() {
	if v.isNative() {
		return
	}
	// inline values are native from birth
	v.lock()

	if !v.isNative() && v.source != nil {
		src := v.source
		if src.isNative() {
			// the source flipped under us: nothing to swap
			v.setFlag(flagNative)
		} else {
			buf := make([]byte, len(v.data))
			if copySafely(src, buf, v.data) {
				v.setFlag(flagNative)
			}
			v.data = buf
			v.source.Unref()
			v.source = nil
		}
	}

	if !v.isNative() {
		data := v.data
		if v.rep() == reprSmall {
			data = v.small[:v.smallLen]
		}
		serial.Byteswap(serial.Serialised{Info: v.info, Data: data})
		v.setFlag(flagNative)
	}
	v.unlock()
}

// Normalize returns a value that is definitely in normal form,
// possibly v itself. Non-normal data fails with KindUnnormalized;
// the value stays readable.
func (v *Value) Normalize() (*Value, error) {
	if v.isTrusted() {
		return v, nil
	}
	if v.rep() == reprTree {
		v.Flatten()
	}
	gsv, owner := v.getGSV()
	ok := serial.IsNormalised(gsv)
	owner.Unref()
	if !ok {
		return nil, errf(KindUnnormalized, "%q value is not in normal form", v.Signature())
	}
	v.setFlag(flagTrusted)
	return v, nil
}

// AssertInvariant walks the value checking its internal invariants,
// panicking on violation. It takes the meta-lock and is potentially
// slow.
func (v *Value) AssertInvariant() {
	if atomic.LoadInt32(&v.refs) <= 0 {
		panic("variant: invariant: non-positive reference count")
	}
	if v.info == nil {
		panic("variant: invariant: value without type-info")
	}

	v.lock()
	var gsv serial.Serialised
	switch v.rep() {
	case reprTree:
		v.unlock()
		return

	case reprSmall:
		if int(v.smallLen) > smallSize {
			v.unlock()
			panic("variant: invariant: inline value too large")
		}
		if !v.isNative() {
			v.unlock()
			panic("variant: invariant: inline value not native endian")
		}
		gsv = serial.Serialised{Info: v.info, Data: v.small[:v.smallLen]}

	case reprLarge:
		if len(v.data) <= smallSize {
			v.unlock()
			panic("variant: invariant: buffer value within inline size")
		}
		if src := v.source; src != nil {
			if !src.isNative() && v.isNative() {
				v.unlock()
				panic("variant: invariant: native slice of non-native source")
			}
			if src.rep() == reprTree {
				v.unlock()
				panic("variant: invariant: slice of tree value")
			}
			if src.source != nil {
				v.unlock()
				panic("variant: invariant: chained shared slices")
			}
		}
		gsv = serial.Serialised{Info: v.info, Data: v.data}
	}

	if fs := v.info.FixedSize(); fs >= 0 && len(gsv.Data) != fs {
		v.unlock()
		panic("variant: invariant: fixed-size value with wrong size")
	}
	v.unlock()
}
