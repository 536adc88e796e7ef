// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package variant

import (
	"testing"

	"github.com/solidcoredata/variant/signature"
)

func TestBuilderInference(t *testing.T) {
	// array infers its element type from the first child
	b, err := NewBuilder('a', "")
	if err != nil {
		t.Fatal(err)
	}
	x := NewInt32(1)
	if err := b.Add(x); err != nil {
		t.Fatal(err)
	}
	x.Unref()
	// second child of a different type refused
	y := NewByte(1)
	if err := b.Add(y); !IsKind(err, KindBuilderContract) {
		t.Fatalf("mixed element err = %v", err)
	}
	y.Unref()
	v, err := b.End()
	if err != nil {
		t.Fatal(err)
	}
	if v.Signature() != "ai" {
		t.Errorf("inferred %q", v.Signature())
	}
	v.Unref()

	// dict entry infers from key and value
	db, err := NewBuilder('{', "")
	if err != nil {
		t.Fatal(err)
	}
	k := mustString(t, "key")
	val := NewUint32(1)
	if err := db.Add(k); err != nil {
		t.Fatal(err)
	}
	if err := db.Add(val); err != nil {
		t.Fatal(err)
	}
	k.Unref()
	val.Unref()
	dv, err := db.End()
	if err != nil {
		t.Fatal(err)
	}
	if dv.Signature() != "{su}" {
		t.Errorf("inferred %q", dv.Signature())
	}
	dv.Unref()
}

func TestBuilderEmptyContainersNeedTypes(t *testing.T) {
	b, err := NewBuilder('a', "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.End(); !IsKind(err, KindBuilderContract) {
		t.Fatalf("empty untyped array err = %v", err)
	}
	b.Abort()

	b, err = NewBuilder('m', "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.End(); !IsKind(err, KindBuilderContract) {
		t.Fatalf("empty untyped maybe err = %v", err)
	}
	b.Abort()

	// with a declared type both are fine, and empty frames result
	b, err = NewBuilder('a', "ai")
	if err != nil {
		t.Fatal(err)
	}
	v, err := b.End()
	if err != nil {
		t.Fatal(err)
	}
	if v.Size() != 0 {
		t.Errorf("empty array size = %d", v.Size())
	}
	v.Unref()

	b, err = NewBuilder('m', "ms")
	if err != nil {
		t.Fatal(err)
	}
	v, err = b.End()
	if err != nil {
		t.Fatal(err)
	}
	if v.Size() != 0 || v.NChildren() != 0 {
		t.Errorf("Nothing size = %d children = %d", v.Size(), v.NChildren())
	}
	v.Unref()
}

func TestBuilderCardinality(t *testing.T) {
	// variant: exactly one child
	vb, err := NewBuilder('v', "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := vb.End(); !IsKind(err, KindBuilderContract) {
		t.Fatalf("empty variant err = %v", err)
	}
	c := NewBool(true)
	if err := vb.Add(c); err != nil {
		t.Fatal(err)
	}
	if err := vb.Add(c); !IsKind(err, KindBuilderContract) {
		t.Fatalf("second variant child err = %v", err)
	}
	c.Unref()
	v, err := vb.End()
	if err != nil {
		t.Fatal(err)
	}
	if v.Signature() != "v" {
		t.Errorf("variant signature %q", v.Signature())
	}
	v.Unref()

	// dict entry: exactly two, key basic
	db, err := NewBuilder('{', "")
	if err != nil {
		t.Fatal(err)
	}
	arr := buildStrings(t, "no")
	if err := db.Add(arr); !IsKind(err, KindBuilderContract) {
		t.Fatalf("array key err = %v", err)
	}
	arr.Unref()
	k := NewByte(1)
	if err := db.Add(k); err != nil {
		t.Fatal(err)
	}
	k.Unref()
	if _, err := db.End(); !IsKind(err, KindBuilderContract) {
		t.Fatalf("half dict entry err = %v", err)
	}
	db.Abort()

	// struct: all declared members, no more
	sb, err := NewBuilder('(', "(iy)")
	if err != nil {
		t.Fatal(err)
	}
	i := NewInt32(5)
	if err := sb.Add(i); err != nil {
		t.Fatal(err)
	}
	i.Unref()
	if _, err := sb.End(); !IsKind(err, KindBuilderContract) {
		t.Fatalf("missing member err = %v", err)
	}
	y := NewByte(2)
	if err := sb.Add(y); err != nil {
		t.Fatal(err)
	}
	if err := sb.Add(y); !IsKind(err, KindBuilderContract) {
		t.Fatalf("extra member err = %v", err)
	}
	y.Unref()
	v, err = sb.End()
	if err != nil {
		t.Fatal(err)
	}
	if v.Size() != 8 {
		t.Errorf("(iy) size = %d, want 8", v.Size())
	}
	v.Unref()
}

func TestBuilderTypeChecks(t *testing.T) {
	if _, err := NewBuilder('a', "a*"); !IsKind(err, KindInvalidSignature) {
		t.Errorf("non-concrete builder type err = %v", err)
	}
	if _, err := NewBuilder('a', "(i)"); !IsKind(err, KindBuilderContract) {
		t.Errorf("class mismatch err = %v", err)
	}
	if _, err := NewBuilder('i', ""); !IsKind(err, KindBuilderContract) {
		t.Errorf("non-container builder err = %v", err)
	}

	b, err := NewBuilder('a', "ai")
	if err != nil {
		t.Fatal(err)
	}
	s := mustString(t, "wrong")
	if err := b.Add(s); !IsKind(err, KindBuilderContract) {
		t.Errorf("wrong element type err = %v", err)
	}
	s.Unref()
	b.Abort()
}

func TestBuilderOpenClose(t *testing.T) {
	b, err := NewBuilder('a', "")
	if err != nil {
		t.Fatal(err)
	}
	sb, err := b.Open('(', "")
	if err != nil {
		t.Fatal(err)
	}

	// only one open child at a time
	if err := b.CheckAdd(signature.Int32, "i"); !IsKind(err, KindBuilderContract) {
		t.Errorf("add during open err = %v", err)
	}

	one := mustString(t, "one")
	two := NewUint32(2)
	if err := sb.Add(one); err != nil {
		t.Fatal(err)
	}
	if err := sb.Add(two); err != nil {
		t.Fatal(err)
	}
	one.Unref()
	two.Unref()

	back, err := sb.Close()
	if err != nil {
		t.Fatal(err)
	}
	if back != b {
		t.Fatal("Close returned a different parent")
	}

	// the array element type is now pinned to (su)
	sb2, err := b.Open('(', "")
	if err != nil {
		t.Fatal(err)
	}
	bad := NewByte(9)
	if err := sb2.Add(bad); !IsKind(err, KindBuilderContract) {
		t.Errorf("pinned member type err = %v", err)
	}
	bad.Unref()
	good := mustString(t, "again")
	num := NewUint32(3)
	if err := sb2.Add(good); err != nil {
		t.Fatal(err)
	}
	if err := sb2.Add(num); err != nil {
		t.Fatal(err)
	}
	good.Unref()
	num.Unref()

	if _, err := sb2.Close(); err != nil {
		t.Fatal(err)
	}

	v, err := b.End()
	if err != nil {
		t.Fatal(err)
	}
	defer v.Unref()
	if v.Signature() != "a(su)" || v.NChildren() != 2 {
		t.Errorf("built %q with %d children", v.Signature(), v.NChildren())
	}
}

func TestBuilderAbortReleasesChildren(t *testing.T) {
	b, err := NewBuilder('(', "")
	if err != nil {
		t.Fatal(err)
	}
	s := mustString(t, "gone")
	if err := b.Add(s); err != nil {
		t.Fatal(err)
	}
	s.Unref()
	sb, err := b.Open('a', "ai")
	if err != nil {
		t.Fatal(err)
	}
	// aborting the open sub-builder aborts the ancestors too
	sb.Abort()
	if b.children != nil {
		t.Error("parent children survived abort")
	}
}

func TestBuilderTrustPropagation(t *testing.T) {
	// a value loaded without Trusted poisons the tree's trust
	raw, err := Load("s", []byte("x\x00"), 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBuilder('a', "as")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Add(raw); err != nil {
		t.Fatal(err)
	}
	raw.Unref()
	v, err := b.End()
	if err != nil {
		t.Fatal(err)
	}
	defer v.Unref()
	if v.IsNormalised() {
		t.Error("tree trusted despite untrusted child")
	}
	if _, err := v.Normalize(); err != nil {
		t.Errorf("normalize: %v", err)
	}
	if !v.IsNormalised() {
		t.Error("normalize did not mark the value")
	}
}
