// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package packet

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBufferUnderrun is matched by every *UnderrunError.
	ErrBufferUnderrun = errors.New("packet: buffer underrun")

	// ErrInvalidLengthFormat is returned when a count prefix is read or
	// written with a length format that is not one of the four known widths.
	ErrInvalidLengthFormat = errors.New("packet: invalid length format")

	// ErrLengthOverflow is returned when a count does not fit the
	// configured length format.
	ErrLengthOverflow = errors.New("packet: length exceeds length format")

	ErrUnsupportedType = errors.New("packet: unsupported type")
	ErrOutOfRange      = errors.New("packet: offset out of range")
	ErrTrailingBytes   = errors.New("packet: trailing bytes after value")
)

// UnderrunError describes a read that wanted more bytes than were left.
type UnderrunError struct {
	Need int
	Have int
}

func (e *UnderrunError) Error() string {
	return fmt.Sprintf("packet: buffer underrun (need %d bytes, %d left)", e.Need, e.Have)
}

// Is makes errors.Is(err, ErrBufferUnderrun) hold for every UnderrunError.
func (e *UnderrunError) Is(target error) bool {
	return target == ErrBufferUnderrun
}

// IsUnderrun returns whether err was caused by reading past the end of a packet.
func IsUnderrun(err error) bool {
	return errors.Is(err, ErrBufferUnderrun)
}
