// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package variant

import (
	"github.com/solidcoredata/variant/signature"
	"github.com/solidcoredata/variant/typeinfo"
)

// Builder assembles one container value (variant, maybe, array,
// structure or dictionary entry) child by child. The container type
// may be declared up front or inferred from the children; an empty
// array or maybe has no child to infer from, so those require a
// declared type.
//
// Contract violations are reported as KindBuilderContract (or
// KindInvalidSignature for a non-concrete declared type) and leave
// the builder unchanged; Abort is safe at any point.
type Builder struct {
	parent *Builder

	class    signature.Class
	sig      string // container signature; "" until known
	expected string // cursor of types still expected; "" when open

	children []*Value
	hasChild bool
	trusted  bool
}

func isContainerClass(c signature.Class) bool {
	switch c {
	case signature.Variant, signature.Maybe, signature.Array,
		signature.Struct, signature.DictEntry:
		return true
	}
	return false
}

// NewBuilder creates a builder for the given container class. sig
// optionally declares the complete container type; for a variant it
// instead declares the expected child type. When given, sig must be
// concrete.
func NewBuilder(class signature.Class, sig string) (*Builder, error) {
	if !isContainerClass(class) {
		return nil, errf(KindBuilderContract, "%q is not a container class", string(class))
	}
	if sig != "" {
		if !signature.IsValid(sig) {
			return nil, errf(KindInvalidSignature, "builder type %q", sig)
		}
		if !signature.Concrete(sig) {
			return nil, errf(KindInvalidSignature, "builder type %q is not concrete", sig)
		}
		if class != signature.Variant && signature.ClassOf(sig) != class {
			return nil, errf(KindBuilderContract, "builder type %q is not of class %q", sig, string(class))
		}
	}

	b := &Builder{class: class, trusted: true}
	switch class {
	case signature.Variant:
		b.sig = "v"
		b.expected = sig
	case signature.Array, signature.Maybe:
		b.sig = sig
		if sig != "" {
			b.expected = signature.Element(sig)
		}
	case signature.Struct, signature.DictEntry:
		b.sig = sig
		if sig != "" {
			b.expected = signature.First(sig)
		}
	}
	return b, nil
}

// CheckAdd reports whether a child of the given class and signature
// may be added next. sig may be "" when only the class is known.
func (b *Builder) CheckAdd(class signature.Class, sig string) error {
	if b.hasChild {
		return errf(KindBuilderContract, "add while a sub-builder is open")
	}
	if b.class == signature.Variant {
		// a variant accepts any single child
		sig = ""
	}
	if sig != "" {
		if signature.ClassOf(sig) != class {
			return errf(KindBuilderContract, "signature %q is not of class %q", sig, string(class))
		}
		if !signature.Concrete(sig) {
			return errf(KindInvalidSignature, "signature %q is not concrete", sig)
		}
	}
	if b.expected != "" {
		want := signature.Head(b.expected)
		if signature.ClassOf(want) != class {
			return errf(KindBuilderContract, "expecting value of class %q, not %q",
				string(signature.ClassOf(want)), string(class))
		}
		if sig != "" && want != sig {
			return errf(KindBuilderContract, "signature %q does not match expected %q", sig, want)
		}
	}

	switch b.class {
	case signature.Variant:
		if len(b.children) > 0 {
			return errf(KindBuilderContract, "a variant holds exactly one value")
		}
	case signature.Maybe:
		if len(b.children) > 0 {
			return errf(KindBuilderContract, "a maybe holds at most one value")
		}
	case signature.DictEntry:
		if len(b.children) > 1 {
			return errf(KindBuilderContract, "a dictionary entry holds a key and a value")
		}
		if len(b.children) == 0 && !signature.IsBasic(class) {
			return errf(KindBuilderContract, "dictionary entry key must be a basic type")
		}
	case signature.Struct:
		if b.sig != "" && b.expected == "" {
			return errf(KindBuilderContract, "too many children for structure type %q", b.sig)
		}
	}
	return nil
}

// Add appends a child value. The builder holds its own reference; the
// caller keeps its own.
func (b *Builder) Add(v *Value) error {
	sig := v.Signature()
	if err := b.CheckAdd(signature.ClassOf(sig), sig); err != nil {
		return err
	}
	b.trusted = b.trusted && v.IsNormalised()

	if b.sig == "" {
		switch b.class {
		case signature.Maybe:
			b.sig = signature.MaybeOf(sig)
			b.expected = signature.Element(b.sig)
		case signature.Array:
			b.sig = signature.ArrayOf(sig)
			b.expected = signature.Element(b.sig)
		}
	} else {
		switch b.class {
		case signature.Variant:
			b.expected = ""
		case signature.Struct, signature.DictEntry:
			if b.expected != "" {
				b.expected = signature.Next(b.expected)
			}
		}
	}

	b.children = append(b.children, v.Ref())
	return nil
}

// Open starts a sub-builder for a child container. Only one child may
// be open at a time; Close it before adding anything else here.
func (b *Builder) Open(class signature.Class, sig string) (*Builder, error) {
	if !isContainerClass(class) {
		return nil, errf(KindBuilderContract, "%q is not a container class", string(class))
	}
	if err := b.CheckAdd(class, sig); err != nil {
		return nil, err
	}
	if class != signature.Variant && sig == "" && b.expected != "" {
		sig = signature.Head(b.expected)
	}
	child, err := NewBuilder(class, sig)
	if err != nil {
		return nil, err
	}
	b.hasChild = true
	child.parent = b
	return child, nil
}

// Close finalizes a sub-builder, adds the resulting value to the
// parent and returns the parent.
func (b *Builder) Close() (*Builder, error) {
	if b.parent == nil {
		return nil, errf(KindBuilderContract, "close of a root builder")
	}
	parent := b.parent
	parent.hasChild = false
	b.parent = nil

	v, err := b.End()
	if err != nil {
		return nil, err
	}
	err = parent.Add(v)
	v.Unref()
	if err != nil {
		return nil, err
	}
	return parent, nil
}

// checkEnd reports whether the builder holds a complete container.
func (b *Builder) checkEnd() error {
	if b.hasChild {
		return errf(KindBuilderContract, "end while a sub-builder is open")
	}
	switch b.class {
	case signature.Variant:
		if len(b.children) < 1 {
			return errf(KindBuilderContract, "a variant must contain exactly one value")
		}
	case signature.Array:
		if b.sig == "" {
			return errf(KindBuilderContract, "unable to infer the type of an empty array")
		}
	case signature.Maybe:
		if b.sig == "" {
			return errf(KindBuilderContract, "unable to infer the type of a maybe with no value")
		}
	case signature.DictEntry:
		if len(b.children) < 2 {
			return errf(KindBuilderContract, "a dictionary entry must have a key and a value")
		}
	case signature.Struct:
		if b.expected != "" {
			return errf(KindBuilderContract,
				"a structure of type %q needs %d children, got %d",
				b.sig, signature.NumItems(b.sig), len(b.children))
		}
	}
	return nil
}

// End finalizes the container and returns the assembled tree value.
// The builder must not be reused afterwards.
func (b *Builder) End() (*Value, error) {
	if b.parent != nil {
		return nil, errf(KindBuilderContract, "end of an open sub-builder; use Close")
	}
	if err := b.checkEnd(); err != nil {
		return nil, err
	}

	if b.sig == "" {
		sigs := make([]string, len(b.children))
		for i, c := range b.children {
			sigs[i] = c.Signature()
		}
		switch b.class {
		case signature.DictEntry:
			b.sig = signature.DictOf(sigs[0], sigs[1])
		case signature.Struct:
			b.sig = signature.TupleOf(sigs...)
		}
	}

	info, err := typeinfo.Get(b.sig)
	if err != nil {
		return nil, errf(KindInvalidSignature, "container type %q: %v", b.sig, err)
	}
	v := newTree(info, b.children, b.trusted)
	b.children = nil
	return v, nil
}

// Abort releases the children of this builder and of every open
// ancestor.
func (b *Builder) Abort() {
	for b != nil {
		for _, c := range b.children {
			c.Unref()
		}
		b.children = nil
		parent := b.parent
		b.parent = nil
		b = parent
	}
}
