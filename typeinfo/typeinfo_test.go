// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package typeinfo

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solidcoredata/variant/signature"
)

func TestBaseTable(t *testing.T) {
	cases := []struct {
		sig       string
		alignment int
		fixedSize int
	}{
		{"b", 0, 1},
		{"y", 0, 1},
		{"n", 1, 2},
		{"q", 1, 2},
		{"i", 3, 4},
		{"u", 3, 4},
		{"x", 7, 8},
		{"t", 7, 8},
		{"d", 7, 8},
		{"s", 0, -1},
		{"o", 0, -1},
		{"g", 0, -1},
		{"v", 7, -1},
	}
	for _, c := range cases {
		info, err := Get(c.sig)
		if err != nil {
			t.Fatalf("Get(%q): %v", c.sig, err)
		}
		if info.Alignment() != c.alignment || info.FixedSize() != c.fixedSize {
			t.Errorf("%q: alignment %d fixedSize %d, want %d %d",
				c.sig, info.Alignment(), info.FixedSize(), c.alignment, c.fixedSize)
		}
		info.Unref()
	}
}

func TestContainerMetadata(t *testing.T) {
	cases := []struct {
		sig       string
		alignment int
		fixedSize int
	}{
		{"ai", 3, -1},
		{"as", 0, -1},
		{"mi", 3, -1},
		{"ms", 0, -1},
		{"()", 0, 1},
		{"(yy)", 0, 2},
		{"(iy)", 3, 8},
		{"(yi)", 3, 8},
		{"(syus)", 3, -1},
		{"(tuqyb)", 7, 16},
		{"{si}", 3, -1},
		{"a(sss)", 0, -1},
		{"a{sv}", 7, -1},
	}
	for _, c := range cases {
		info, err := Get(c.sig)
		if err != nil {
			t.Fatalf("Get(%q): %v", c.sig, err)
		}
		if info.Alignment() != c.alignment || info.FixedSize() != c.fixedSize {
			t.Errorf("%q: alignment %d fixedSize %d, want %d %d",
				c.sig, info.Alignment(), info.FixedSize(), c.alignment, c.fixedSize)
		}
		info.Unref()
	}
}

func TestStructMemberInfo(t *testing.T) {
	info, err := Get("(syus)")
	if err != nil {
		t.Fatal(err)
	}
	defer info.Unref()

	type row struct {
		Index, Plus, And, Or, Size int
	}
	var got []row
	for i := 0; i < info.NumMembers(); i++ {
		m, ok := info.Member(i)
		if !ok {
			t.Fatalf("Member(%d) missing", i)
		}
		got = append(got, row{m.Index, m.Plus, m.And, m.Or, m.Size})
	}
	want := []row{
		{-1, 0, ^0, 0, MemberVariable},
		{0, 0, ^0, 0, 1},
		{0, 4, ^3, 0, 4},
		{0, 8, ^3, 0, MemberLast},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("member info mismatch (-want +got):\n%s", diff)
	}

	// Resolve the starts against the known frame of
	// ("str", 0xAA, 0x01010101, "theend"): one offset entry with
	// value 4 at the end of a 20 byte frame.
	offsets := func(i int) int {
		if i == -1 {
			return 0
		}
		return 4
	}
	starts := []int{0, 4, 8, 12}
	for i, m := range got {
		start := (offsets(m.Index)+m.Plus)&m.And | m.Or
		if start != starts[i] {
			t.Errorf("member %d start = %d, want %d", i, start, starts[i])
		}
	}
}

func TestDictEntryMembers(t *testing.T) {
	info, err := Get("{si}")
	if err != nil {
		t.Fatal(err)
	}
	defer info.Unref()

	if info.NumMembers() != 2 {
		t.Fatalf("NumMembers = %d, want 2", info.NumMembers())
	}
	k, _ := info.Member(0)
	v, _ := info.Member(1)
	if k.Info.Signature() != "s" || k.Size != MemberVariable || k.Index != -1 {
		t.Errorf("key member = %+v", k)
	}
	if v.Info.Signature() != "i" || v.Size != 4 || v.Index != 0 {
		t.Errorf("value member = %+v", v)
	}
}

func TestInterning(t *testing.T) {
	a, err := Get("a{sv}")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Get("a{sv}")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("two Get calls returned distinct records")
	}
	// The element chain is interned too.
	c, err := Get("{sv}")
	if err != nil {
		t.Fatal(err)
	}
	if a.Element() != c {
		t.Error("element record not shared with direct Get")
	}
	c.Unref()
	b.Unref()
	a.Unref()
}

func TestLastReleaseRemoves(t *testing.T) {
	info, err := Get("(nqxd)")
	if err != nil {
		t.Fatal(err)
	}
	if !cached("(nqxd)") {
		t.Fatal("record not interned after Get")
	}
	info.Unref()
	// The hot-type cache still holds a reference.
	if !cached("(nqxd)") {
		t.Fatal("record dropped while the recent cache references it")
	}
	flushRecent()
	if cached("(nqxd)") {
		t.Error("record still interned after last release")
	}
	if cached("n") || cached("(nqxd)") {
		t.Error("member records leaked")
	}
}

func TestGetRejects(t *testing.T) {
	for _, sig := range []string{"", "zz", "a", "(i", "a*", "m?", "ar", "*"} {
		if _, err := Get(sig); err == nil {
			t.Errorf("Get(%q) succeeded, want error", sig)
		}
	}
}

func TestElementChain(t *testing.T) {
	info, err := Get("aai")
	if err != nil {
		t.Fatal(err)
	}
	defer info.Unref()
	if info.Class() != signature.Array {
		t.Fatal("class mismatch")
	}
	if e := info.Element(); e.Signature() != "ai" || e.Element().Signature() != "i" {
		t.Error("element chain wrong")
	}
}
