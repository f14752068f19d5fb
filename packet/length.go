// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package packet

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// LengthFormat selects the width of every count prefix a Packet reads or writes:
// string lengths, sequence lengths, map sizes and delta payload sizes.
type LengthFormat uint8

const (
	UInt8 LengthFormat = iota
	UInt16
	UInt32
	UInt64
)

// DefaultLengthFormat is used by packets that are not configured otherwise.
const DefaultLengthFormat = UInt16

// Size returns the number of bytes a count prefix occupies.
func (f LengthFormat) Size() (int, error) {
	switch f {
	case UInt8:
		return 1, nil
	case UInt16:
		return 2, nil
	case UInt32:
		return 4, nil
	case UInt64:
		return 8, nil
	}
	return 0, errors.Wrapf(ErrInvalidLengthFormat, "format %d", uint8(f))
}

// Max returns the largest count the format can carry, or 0 for unknown formats.
func (f LengthFormat) Max() uint64 {
	switch f {
	case UInt8:
		return math.MaxUint8
	case UInt16:
		return math.MaxUint16
	case UInt32:
		return math.MaxUint32
	case UInt64:
		return math.MaxUint64
	}
	return 0
}

func (f LengthFormat) String() string {
	switch f {
	case UInt8:
		return "uint8"
	case UInt16:
		return "uint16"
	case UInt32:
		return "uint32"
	case UInt64:
		return "uint64"
	}
	return "invalid"
}

func (f LengthFormat) MarshalText() ([]byte, error) {
	if _, err := f.Size(); err != nil {
		return nil, err
	}
	return []byte(f.String()), nil
}

func (f *LengthFormat) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "uint8", "8":
		*f = UInt8
	case "uint16", "16":
		*f = UInt16
	case "uint32", "32":
		*f = UInt32
	case "uint64", "64":
		*f = UInt64
	default:
		return errors.Wrapf(ErrInvalidLengthFormat, "unknown name %q", text)
	}
	return nil
}
