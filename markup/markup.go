// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package markup renders values as an XML-like text form and reads
// that form back. It is the surface the command line tools work
// through; the byte layout itself lives in package serial.
//
// The element vocabulary:
//
//	<variant>, <maybe>, <nothing type='mX'/>, <array>,
//	<array type='aX'/>, <struct>, <triv/>, <dictionary-entry>,
//	<string>, <object-path>, <signature>, <true/>, <false/>,
//	<byte>, <int16>, <uint16>, <int32>, <uint32>, <int64>,
//	<uint64>, <double>
//
// Empty arrays and maybes carry their type in an attribute since
// there is no element to infer it from.
package markup

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/solidcoredata/variant"
	"github.com/solidcoredata/variant/signature"
)

// Print renders a value. With newlines set, children are placed one
// per line, indented by tabstop spaces per depth.
func Print(v *variant.Value, newlines bool, tabstop int) string {
	var sb strings.Builder
	appendValue(&sb, v, newlines, 0, tabstop)
	return sb.String()
}

func indent(sb *strings.Builder, n int) {
	for i := 0; i < n; i++ {
		sb.WriteByte(' ')
	}
}

func newline(sb *strings.Builder, newlines bool) {
	if newlines {
		sb.WriteByte('\n')
	}
}

func escaped(sb *strings.Builder, s string) {
	// the escaper cannot fail on a strings.Builder
	xml.EscapeText(sb, []byte(s))
}

func appendValue(sb *strings.Builder, v *variant.Value, newlines bool, indentation, tabstop int) {
	indentation += tabstop
	indent(sb, indentation)

	switch v.Class() {
	case signature.Variant:
		sb.WriteString("<variant>")
		newline(sb, newlines)
		child := v.Boxed()
		appendValue(sb, child, newlines, indentation, tabstop)
		child.Unref()
		indent(sb, indentation)
		sb.WriteString("</variant>")

	case signature.Maybe:
		if v.NChildren() > 0 {
			sb.WriteString("<maybe>")
			newline(sb, newlines)
			child, err := v.Child(0)
			if err == nil {
				appendValue(sb, child, newlines, indentation, tabstop)
				child.Unref()
			}
			indent(sb, indentation)
			sb.WriteString("</maybe>")
		} else {
			fmt.Fprintf(sb, "<nothing type='%s'/>", v.Signature())
		}

	case signature.Array:
		var it variant.Iter
		if it.Init(v) > 0 {
			sb.WriteString("<array>")
			newline(sb, newlines)
			for child := it.Next(); child != nil; child = it.Next() {
				appendValue(sb, child, newlines, indentation, tabstop)
				child.Unref()
			}
			indent(sb, indentation)
			sb.WriteString("</array>")
		} else {
			fmt.Fprintf(sb, "<array type='%s'/>", v.Signature())
		}

	case signature.Struct:
		var it variant.Iter
		if it.Init(v) > 0 {
			sb.WriteString("<struct>")
			newline(sb, newlines)
			for child := it.Next(); child != nil; child = it.Next() {
				appendValue(sb, child, newlines, indentation, tabstop)
				child.Unref()
			}
			indent(sb, indentation)
			sb.WriteString("</struct>")
		} else {
			sb.WriteString("<triv/>")
		}

	case signature.DictEntry:
		sb.WriteString("<dictionary-entry>")
		newline(sb, newlines)
		var it variant.Iter
		it.Init(v)
		for child := it.Next(); child != nil; child = it.Next() {
			appendValue(sb, child, newlines, indentation, tabstop)
			child.Unref()
		}
		indent(sb, indentation)
		sb.WriteString("</dictionary-entry>")

	case signature.String:
		sb.WriteString("<string>")
		escaped(sb, v.String())
		sb.WriteString("</string>")

	case signature.ObjectPath:
		sb.WriteString("<object-path>")
		escaped(sb, v.String())
		sb.WriteString("</object-path>")

	case signature.Signature:
		sb.WriteString("<signature>")
		escaped(sb, v.String())
		sb.WriteString("</signature>")

	case signature.Bool:
		if v.Bool() {
			sb.WriteString("<true/>")
		} else {
			sb.WriteString("<false/>")
		}

	case signature.Byte:
		fmt.Fprintf(sb, "<byte>0x%02x</byte>", v.Byte())

	case signature.Int16:
		fmt.Fprintf(sb, "<int16>%d</int16>", v.Int16())

	case signature.Uint16:
		fmt.Fprintf(sb, "<uint16>%d</uint16>", v.Uint16())

	case signature.Int32:
		fmt.Fprintf(sb, "<int32>%d</int32>", v.Int32())

	case signature.Uint32:
		fmt.Fprintf(sb, "<uint32>%d</uint32>", v.Uint32())

	case signature.Int64:
		fmt.Fprintf(sb, "<int64>%d</int64>", v.Int64())

	case signature.Uint64:
		fmt.Fprintf(sb, "<uint64>%d</uint64>", v.Uint64())

	case signature.Double:
		fmt.Fprintf(sb, "<double>%f</double>", v.Double())
	}

	newline(sb, newlines)
}
