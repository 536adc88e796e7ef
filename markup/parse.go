// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package markup

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/solidcoredata/variant"
	"github.com/solidcoredata/variant/signature"
)

var containerClass = map[string]signature.Class{
	"variant":          signature.Variant,
	"maybe":            signature.Maybe,
	"nothing":          signature.Maybe,
	"array":            signature.Array,
	"struct":           signature.Struct,
	"triv":             signature.Struct,
	"dictionary-entry": signature.DictEntry,
}

var leafNames = map[string]bool{
	"string": true, "object-path": true, "signature": true,
	"true": true, "false": true,
	"byte": true, "int16": true, "uint16": true, "int32": true,
	"uint32": true, "int64": true, "uint64": true, "double": true,
}

type parser struct {
	stack  []*variant.Builder
	result *variant.Value

	leaf string // leaf element currently open, "" otherwise
	text strings.Builder
}

// Parse reads exactly one value in markup form from r.
func Parse(r io.Reader) (*variant.Value, error) {
	p := &parser{}
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.abort()
			return nil, errors.Wrap(err, "markup: reading input")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			err = p.start(t)
		case xml.EndElement:
			err = p.end(t)
		case xml.CharData:
			if p.leaf != "" {
				p.text.Write(t)
			}
		}
		if err != nil {
			p.abort()
			return nil, errors.Wrapf(err, "markup: at byte %d", dec.InputOffset())
		}
	}
	if len(p.stack) > 0 {
		p.abort()
		return nil, errors.New("markup: unclosed element at end of input")
	}
	if p.result == nil {
		return nil, errors.New("markup: no value in input")
	}
	return p.result, nil
}

// ParseString reads exactly one value from a markup string.
func ParseString(s string) (*variant.Value, error) {
	return Parse(strings.NewReader(s))
}

func (p *parser) abort() {
	if len(p.stack) > 0 {
		// aborting the innermost builder releases the ancestors too
		p.stack[len(p.stack)-1].Abort()
		p.stack = nil
	}
	if p.result != nil {
		p.result.Unref()
		p.result = nil
	}
}

func typeAttr(t xml.StartElement) string {
	for _, a := range t.Attr {
		if a.Name.Local == "type" {
			return a.Value
		}
	}
	return ""
}

func (p *parser) start(t xml.StartElement) error {
	name := t.Name.Local
	if p.leaf != "" {
		return errors.Errorf("element <%s> inside <%s>", name, p.leaf)
	}

	if class, ok := containerClass[name]; ok {
		sig := typeAttr(t)
		if name == "triv" && sig == "" {
			sig = "()"
		}
		if len(p.stack) == 0 {
			b, err := variant.NewBuilder(class, sig)
			if err != nil {
				return errors.Wrapf(err, "<%s>", name)
			}
			p.stack = append(p.stack, b)
			return nil
		}
		parent := p.stack[len(p.stack)-1]
		b, err := parent.Open(class, sig)
		if err != nil {
			return errors.Wrapf(err, "<%s>", name)
		}
		p.stack = append(p.stack, b)
		return nil
	}

	if leafNames[name] {
		p.leaf = name
		p.text.Reset()
		return nil
	}
	return errors.Errorf("unknown element <%s>", name)
}

func (p *parser) end(t xml.EndElement) error {
	if p.leaf != "" {
		v, err := leafValue(p.leaf, p.text.String())
		p.leaf = ""
		if err != nil {
			return err
		}
		return p.deliver(v)
	}

	b := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]

	if len(p.stack) > 0 {
		_, err := b.Close()
		return errors.Wrapf(err, "</%s>", t.Name.Local)
	}
	v, err := b.End()
	if err != nil {
		return errors.Wrapf(err, "</%s>", t.Name.Local)
	}
	return p.deliver(v)
}

// deliver hands a finished value to the enclosing builder, or makes
// it the parse result at top level. The value reference is consumed.
func (p *parser) deliver(v *variant.Value) error {
	if len(p.stack) > 0 {
		err := p.stack[len(p.stack)-1].Add(v)
		v.Unref()
		return err
	}
	if p.result != nil {
		v.Unref()
		return errors.New("more than one top-level value")
	}
	p.result = v
	return nil
}

func leafValue(name, text string) (*variant.Value, error) {
	switch name {
	case "true":
		return variant.NewBool(true), nil
	case "false":
		return variant.NewBool(false), nil
	case "string":
		return variant.NewString(text)
	case "object-path":
		return variant.NewObjectPath(strings.TrimSpace(text))
	case "signature":
		return variant.NewSignature(strings.TrimSpace(text))
	case "double":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, errors.Wrap(err, "<double>")
		}
		return variant.NewDouble(f), nil
	}

	num := strings.TrimSpace(text)
	switch name {
	case "byte":
		u, err := strconv.ParseUint(num, 0, 8)
		if err != nil {
			return nil, errors.Wrap(err, "<byte>")
		}
		return variant.NewByte(byte(u)), nil
	case "int16":
		i, err := strconv.ParseInt(num, 0, 16)
		if err != nil {
			return nil, errors.Wrap(err, "<int16>")
		}
		return variant.NewInt16(int16(i)), nil
	case "uint16":
		u, err := strconv.ParseUint(num, 0, 16)
		if err != nil {
			return nil, errors.Wrap(err, "<uint16>")
		}
		return variant.NewUint16(uint16(u)), nil
	case "int32":
		i, err := strconv.ParseInt(num, 0, 32)
		if err != nil {
			return nil, errors.Wrap(err, "<int32>")
		}
		return variant.NewInt32(int32(i)), nil
	case "uint32":
		u, err := strconv.ParseUint(num, 0, 32)
		if err != nil {
			return nil, errors.Wrap(err, "<uint32>")
		}
		return variant.NewUint32(uint32(u)), nil
	case "int64":
		i, err := strconv.ParseInt(num, 0, 64)
		if err != nil {
			return nil, errors.Wrap(err, "<int64>")
		}
		return variant.NewInt64(i), nil
	case "uint64":
		u, err := strconv.ParseUint(num, 0, 64)
		if err != nil {
			return nil, errors.Wrap(err, "<uint64>")
		}
		return variant.NewUint64(u), nil
	}
	return nil, errors.Errorf("unknown leaf element <%s>", name)
}
