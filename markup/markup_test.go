// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package markup

import (
	"strings"
	"testing"

	"github.com/solidcoredata/variant"
	"github.com/solidcoredata/variant/serial"
	"github.com/solidcoredata/variant/typeinfo"
)

func parseOne(t *testing.T, text string) *variant.Value {
	t.Helper()
	v, err := ParseString(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return v
}

func TestPrintLeaves(t *testing.T) {
	cases := []struct {
		build func() *variant.Value
		want  string
	}{
		{func() *variant.Value { return variant.NewBool(true) }, "<true/>"},
		{func() *variant.Value { return variant.NewBool(false) }, "<false/>"},
		{func() *variant.Value { return variant.NewByte(0x2A) }, "<byte>0x2a</byte>"},
		{func() *variant.Value { return variant.NewInt16(-5) }, "<int16>-5</int16>"},
		{func() *variant.Value { return variant.NewUint32(7) }, "<uint32>7</uint32>"},
		{func() *variant.Value { return variant.NewInt64(-9) }, "<int64>-9</int64>"},
		{func() *variant.Value {
			v, _ := variant.NewString("hi & <bye>")
			return v
		}, "<string>hi &amp; &lt;bye&gt;</string>"},
	}
	for _, c := range cases {
		v := c.build()
		got := strings.TrimSpace(Print(v, false, 0))
		v.Unref()
		if got != c.want {
			t.Errorf("Print = %q, want %q", got, c.want)
		}
	}
}

func TestParsePrintRoundtrip(t *testing.T) {
	texts := []string{
		"<true/>",
		"<byte>0x10</byte>",
		"<string>hello world</string>",
		"<array><string>a</string><string>b</string></array>",
		"<struct><string>str</string><byte>0xaa</byte><uint32>16843009</uint32><string>theend</string></struct>",
		"<variant><int32>-1</int32></variant>",
		"<maybe><string>hi</string></maybe>",
		"<nothing type='mi'/>",
		"<array type='as'/>",
		"<triv/>",
		"<array><dictionary-entry><string>k</string><uint32>1</uint32></dictionary-entry></array>",
		"<object-path>/com/example</object-path>",
		"<signature>a{sv}</signature>",
	}
	for _, text := range texts {
		v := parseOne(t, text)
		rendered := Print(v, false, 0)
		v2, err := ParseString(rendered)
		if err != nil {
			t.Errorf("re-parse of %q (%q): %v", text, rendered, err)
			v.Unref()
			continue
		}
		if v.Signature() != v2.Signature() {
			t.Errorf("%q: signature %q became %q", text, v.Signature(), v2.Signature())
		}
		a, b := v.Data(), v2.Data()
		if string(a) != string(b) {
			t.Errorf("%q: bytes changed over the trip: % X vs % X", text, a, b)
		}
		v.Unref()
		v2.Unref()
	}
}

func TestParseInfersTypes(t *testing.T) {
	v := parseOne(t, "<array><int32>1</int32><int32>2</int32></array>")
	defer v.Unref()
	if v.Signature() != "ai" {
		t.Errorf("signature = %q", v.Signature())
	}

	d := parseOne(t, "<dictionary-entry><string>k</string><variant><true/></variant></dictionary-entry>")
	defer d.Unref()
	if d.Signature() != "{sv}" {
		t.Errorf("signature = %q", d.Signature())
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"",
		"<array/>",            // no type, nothing to infer
		"<maybe></maybe>",     // same for maybe
		"<unknown/>",          // vocabulary violation
		"<int16>70000</int16>", // out of range
		"<byte>xyz</byte>",
		"<array><int32>1</int32><string>s</string></array>", // mixed
		"<variant></variant>",
		"<true/><false/>", // two top-level values
		"<struct><string>unclosed</string>",
		"<object-path>not/absolute</object-path>",
	}
	for _, text := range bad {
		if v, err := ParseString(text); err == nil {
			v.Unref()
			t.Errorf("parse %q succeeded", text)
		}
	}
}

func TestPrintNewlinesIndents(t *testing.T) {
	v := parseOne(t, "<array><string>a</string></array>")
	defer v.Unref()
	got := Print(v, true, 2)
	want := "  <array>\n    <string>a</string>\n  </array>\n"
	if got != want {
		t.Errorf("Print = %q, want %q", got, want)
	}
}

// The byte-swap fixture: a foreign-endian load must render the same
// text as the original once accessed.
func TestForeignEndianRendersSame(t *testing.T) {
	text := "<struct><uint64>8</uint64><uint32>1</uint32><uint16>2</uint16><byte>0x01</byte><false/></struct>"
	v := parseOne(t, text)
	if v.Signature() != "(tuqyb)" {
		t.Fatalf("signature = %q", v.Signature())
	}
	original := Print(v, true, 2)

	frame := append([]byte(nil), v.Data()...)
	info := typeinfo.MustGet(v.Signature())
	serial.Byteswap(serial.Serialised{Info: info, Data: frame})
	info.Unref()

	lv, err := variant.Load(v.Signature(), frame, variant.ByteswapLazy)
	if err != nil {
		t.Fatal(err)
	}
	if got := Print(lv, true, 2); got != original {
		t.Errorf("foreign rendering differs:\n%s\nvs\n%s", got, original)
	}
	lv.Unref()
	v.Unref()
}
