// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package variant

import (
	"github.com/solidcoredata/variant/serial"
	"github.com/solidcoredata/variant/typeinfo"
)

// Flags adjust how serialized bytes are adopted by Load and FromOwned.
type Flags uint

const (
	// Trusted asserts the data is already in normal form; checks are
	// skipped. Mutually exclusive with Normalise.
	Trusted Flags = 1 << iota
	// ByteswapNow swaps every primitive during the load.
	ByteswapNow
	// ByteswapLazy defers the swap until the first operation that
	// exposes native-endian bytes. Mutually exclusive with
	// ByteswapNow.
	ByteswapLazy
	// Normalise fails the load unless the data is in normal form.
	Normalise
	// EmbedSignature treats the bytes as a variant frame carrying its
	// own signature; the result is that variant's child.
	EmbedSignature
)

// Load creates a value of the given signature from a copy of data.
// An empty signature implies EmbedSignature.
func Load(sig string, data []byte, flags Flags) (*Value, error) {
	if sig == "" || flags&EmbedSignature != 0 {
		boxed, err := Load("v", data, flags&^EmbedSignature)
		if err != nil {
			return nil, err
		}
		child, err := boxed.Child(0)
		boxed.Unref()
		return child, err
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return FromOwned(sig, buf, flags)
}

// FromOwned creates a value of the given signature taking ownership
// of buf, which must not be used by the caller afterwards. This is
// the efficient path for buffers read from a socket or a file.
func FromOwned(sig string, buf []byte, flags Flags) (*Value, error) {
	if sig == "" || flags&EmbedSignature != 0 {
		boxed, err := FromOwned("v", buf, flags&^EmbedSignature)
		if err != nil {
			return nil, err
		}
		child, err := boxed.Child(0)
		boxed.Unref()
		return child, err
	}

	info, err := typeinfo.Get(sig)
	if err != nil {
		return nil, errf(KindInvalidSignature, "load of %q: %v", sig, err)
	}
	return applyFlags(newSerialised(info, buf), flags)
}

// applyFlags establishes the trust and byte order state of a freshly
// loaded value.
func applyFlags(v *Value, flags Flags) (*Value, error) {
	if flags&Trusted != 0 && flags&Normalise != 0 {
		v.Unref()
		return nil, errf(KindBuilderContract, "Trusted and Normalise are mutually exclusive")
	}
	if flags&ByteswapNow != 0 && flags&ByteswapLazy != 0 {
		v.Unref()
		return nil, errf(KindBuilderContract, "ByteswapNow and ByteswapLazy are mutually exclusive")
	}

	switch {
	case flags&ByteswapNow != 0:
		v.clearFlag(flagNative)
		v.ensureNativeEndian()

	case flags&ByteswapLazy != 0:
		if v.rep() == reprSmall {
			// inline values are always native: swap immediately
			serial.Byteswap(serial.Serialised{Info: v.info, Data: v.small[:v.smallLen]})
		} else {
			v.clearFlag(flagNative)
		}
	}

	switch {
	case flags&Normalise != 0:
		v.clearFlag(flagTrusted)
		nv, err := v.Normalize()
		if err != nil {
			v.Unref()
			return nil, err
		}
		return nv, nil

	case flags&Trusted != 0:
		v.setFlag(flagTrusted)

	default:
		v.clearFlag(flagTrusted)
	}
	return v, nil
}
