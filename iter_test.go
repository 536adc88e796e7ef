// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package variant

import "testing"

func TestIterExhausts(t *testing.T) {
	v := buildStrings(t, "a", "b", "c")
	defer v.Unref()

	var it Iter
	n := it.Init(v)
	if n != v.NChildren() {
		t.Fatalf("Init = %d, want %d", n, v.NChildren())
	}

	var got []string
	for c := it.Next(); c != nil; c = it.Next() {
		got = append(got, c.String())
		c.Unref()
	}
	if len(got) != n {
		t.Fatalf("iterated %d children, want %d", len(got), n)
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("iterated %v", got)
	}
	// exhausted: the container reference is gone
	if it.value != nil {
		t.Error("iterator kept its reference after exhaustion")
	}
	if it.Next() != nil {
		t.Error("Next after exhaustion returned a value")
	}
}

func TestIterEmpty(t *testing.T) {
	b, err := NewBuilder('a', "as")
	if err != nil {
		t.Fatal(err)
	}
	v, err := b.End()
	if err != nil {
		t.Fatal(err)
	}
	defer v.Unref()

	var it Iter
	if n := it.Init(v); n != 0 {
		t.Fatalf("Init = %d", n)
	}
	if it.value != nil {
		t.Error("empty iterator held a reference")
	}
	if it.Next() != nil {
		t.Error("Next on empty container returned a value")
	}
}

func TestIterCancel(t *testing.T) {
	v := buildStrings(t, "x", "y")
	defer v.Unref()

	var it Iter
	it.Init(v)
	c := it.Next()
	c.Unref()
	it.Cancel()
	if it.value != nil {
		t.Error("Cancel kept the reference")
	}
	if it.Next() != nil {
		t.Error("Next after Cancel returned a value")
	}
}

func TestIterOverSerialized(t *testing.T) {
	v := buildStrings(t, "p", "q")
	defer v.Unref()
	v.Flatten()

	var it Iter
	if n := it.Init(v); n != 2 {
		t.Fatalf("Init = %d", n)
	}
	first := it.Next()
	second := it.Next()
	if first.String() != "p" || second.String() != "q" {
		t.Errorf("iterated %q %q", first.String(), second.String())
	}
	first.Unref()
	second.Unref()
}
