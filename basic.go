// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package variant

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/solidcoredata/variant/serial"
	"github.com/solidcoredata/variant/signature"
	"github.com/solidcoredata/variant/typeinfo"
)

// newBasic builds a trusted, native value of a basic type from its
// payload bytes.
func newBasic(sig string, data []byte) *Value {
	v := newSerialised(typeinfo.MustGet(sig), data)
	v.setFlag(flagTrusted)
	return v
}

// NewBool creates a boolean value.
func NewBool(b bool) *Value {
	p := []byte{0}
	if b {
		p[0] = 1
	}
	return newBasic("b", p)
}

// NewByte creates an unsigned 8-bit value.
func NewByte(b byte) *Value {
	return newBasic("y", []byte{b})
}

// NewInt16 creates a signed 16-bit value.
func NewInt16(i int16) *Value {
	return NewUint16(uint16(i)).retype("n")
}

// NewUint16 creates an unsigned 16-bit value.
func NewUint16(u uint16) *Value {
	p := make([]byte, 2)
	binary.NativeEndian.PutUint16(p, u)
	return newBasic("q", p)
}

// NewInt32 creates a signed 32-bit value.
func NewInt32(i int32) *Value {
	return NewUint32(uint32(i)).retype("i")
}

// NewUint32 creates an unsigned 32-bit value.
func NewUint32(u uint32) *Value {
	p := make([]byte, 4)
	binary.NativeEndian.PutUint32(p, u)
	return newBasic("u", p)
}

// NewInt64 creates a signed 64-bit value.
func NewInt64(i int64) *Value {
	return NewUint64(uint64(i)).retype("x")
}

// NewUint64 creates an unsigned 64-bit value.
func NewUint64(u uint64) *Value {
	p := make([]byte, 8)
	binary.NativeEndian.PutUint64(p, u)
	return newBasic("t", p)
}

// NewDouble creates a 64-bit floating point value.
func NewDouble(f float64) *Value {
	p := make([]byte, 8)
	binary.NativeEndian.PutUint64(p, math.Float64bits(f))
	return newBasic("d", p)
}

// retype swaps the type-info of a freshly built value for another type
// with the same payload: the signed twin of an unsigned integer, or an
// object path or signature for a string.
func (v *Value) retype(sig string) *Value {
	old := v.info
	v.info = typeinfo.MustGet(sig)
	old.Unref()
	return v
}

// NewString creates a string value. The string must not contain a NUL
// byte.
func NewString(s string) (*Value, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, errf(KindBuilderContract, "string with interior NUL")
	}
	return newBasic("s", append([]byte(s), 0)), nil
}

// NewObjectPath creates an object path value, validating the path
// syntax.
func NewObjectPath(p string) (*Value, error) {
	v, err := NewString(p)
	if err != nil {
		return nil, err
	}
	v = v.retype("o")
	if !serial.IsNormalised(serial.Serialised{Info: v.info, Data: v.Data()}) {
		v.Unref()
		return nil, errf(KindBuilderContract, "%q is not an object path", p)
	}
	return v, nil
}

// NewSignature creates a signature-string value holding zero or more
// complete concrete signatures.
func NewSignature(s string) (*Value, error) {
	v, err := NewString(s)
	if err != nil {
		return nil, err
	}
	v = v.retype("g")
	if !serial.IsNormalised(serial.Serialised{Info: v.info, Data: v.Data()}) {
		v.Unref()
		return nil, errf(KindInvalidSignature, "%q is not a signature string", s)
	}
	return v, nil
}

// NewVariant boxes a value. The box holds its own reference to child.
func NewVariant(child *Value) *Value {
	trusted := child.IsNormalised()
	return newTree(typeinfo.MustGet("v"), []*Value{child.Ref()}, trusted)
}

func (v *Value) assertClass(c signature.Class, op string) {
	if v.info.Class() != c {
		panic("variant: " + op + " of " + string(v.info.Class()) + " value")
	}
}

// fixedPayload returns the value's bytes when they have the expected
// length, nil otherwise. Damaged values read as zero.
func (v *Value) fixedPayload(n int) []byte {
	d := v.Data()
	if len(d) != n {
		return nil
	}
	return d
}

// Bool returns the boolean payload.
func (v *Value) Bool() bool {
	v.assertClass(signature.Bool, "Bool")
	d := v.fixedPayload(1)
	return d != nil && d[0] != 0
}

// Byte returns the unsigned 8-bit payload.
func (v *Value) Byte() byte {
	v.assertClass(signature.Byte, "Byte")
	d := v.fixedPayload(1)
	if d == nil {
		return 0
	}
	return d[0]
}

// Int16 returns the signed 16-bit payload.
func (v *Value) Int16() int16 {
	v.assertClass(signature.Int16, "Int16")
	d := v.fixedPayload(2)
	if d == nil {
		return 0
	}
	return int16(binary.NativeEndian.Uint16(d))
}

// Uint16 returns the unsigned 16-bit payload.
func (v *Value) Uint16() uint16 {
	v.assertClass(signature.Uint16, "Uint16")
	d := v.fixedPayload(2)
	if d == nil {
		return 0
	}
	return binary.NativeEndian.Uint16(d)
}

// Int32 returns the signed 32-bit payload.
func (v *Value) Int32() int32 {
	v.assertClass(signature.Int32, "Int32")
	d := v.fixedPayload(4)
	if d == nil {
		return 0
	}
	return int32(binary.NativeEndian.Uint32(d))
}

// Uint32 returns the unsigned 32-bit payload.
func (v *Value) Uint32() uint32 {
	v.assertClass(signature.Uint32, "Uint32")
	d := v.fixedPayload(4)
	if d == nil {
		return 0
	}
	return binary.NativeEndian.Uint32(d)
}

// Int64 returns the signed 64-bit payload.
func (v *Value) Int64() int64 {
	v.assertClass(signature.Int64, "Int64")
	d := v.fixedPayload(8)
	if d == nil {
		return 0
	}
	return int64(binary.NativeEndian.Uint64(d))
}

// Uint64 returns the unsigned 64-bit payload.
func (v *Value) Uint64() uint64 {
	v.assertClass(signature.Uint64, "Uint64")
	d := v.fixedPayload(8)
	if d == nil {
		return 0
	}
	return binary.NativeEndian.Uint64(d)
}

// Double returns the 64-bit floating point payload.
func (v *Value) Double() float64 {
	v.assertClass(signature.Double, "Double")
	d := v.fixedPayload(8)
	if d == nil {
		return 0
	}
	return math.Float64frombits(binary.NativeEndian.Uint64(d))
}

// String returns the payload of a string, object path or
// signature-string value without the terminating NUL. Damaged values
// read as the empty string.
func (v *Value) String() string {
	switch v.info.Class() {
	case signature.String, signature.ObjectPath, signature.Signature:
	default:
		panic("variant: String of " + string(v.info.Class()) + " value")
	}
	d := v.Data()
	if len(d) == 0 {
		return ""
	}
	if d[len(d)-1] == 0 {
		d = d[:len(d)-1]
	}
	return string(d)
}

// Boxed returns the child of a variant value.
func (v *Value) Boxed() *Value {
	v.assertClass(signature.Variant, "Boxed")
	child, err := v.Child(0)
	if err != nil {
		// a variant always reports one child
		panic(err)
	}
	return child
}
