// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package variant

// Iter walks the children of a container value in order. It holds a
// reference to the container while children remain and drops it when
// the last child has been produced. Iterators are one-shot.
type Iter struct {
	value  *Value
	length int
	offset int
}

// Init prepares iteration over the children of v and returns the
// child count. The iterator needs no other preparation.
func (it *Iter) Init(v *Value) int {
	it.length = v.NChildren()
	it.offset = 0
	if it.length > 0 {
		it.value = v.Ref()
	} else {
		it.value = nil
	}
	return it.length
}

// Next returns the next child, or nil when the iteration is done. The
// reference to the container is dropped as the last child is returned.
// Each returned child is a new reference owned by the caller.
func (it *Iter) Next() *Value {
	if it.value == nil {
		return nil
	}
	child, err := it.value.Child(it.offset)
	if err != nil {
		// the index is within the count reported by Init
		panic(err)
	}
	it.offset++
	if it.offset == it.length {
		it.value.Unref()
		it.value = nil
	}
	return child
}

// Cancel drops the container reference early. Needed only when the
// iteration stops before Next returns nil.
func (it *Iter) Cancel() {
	if it.value != nil {
		it.value.Unref()
		it.value = nil
	}
}
