// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package basic // import "github.com/ssbc/wirestate/framing/basic"

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/ssbc/wirestate"
)

var (
	ErrFrameTooLarge = errors.New("frame: data too long")
	ErrShortFrame    = errors.New("frame: truncated")
	ErrFrameSize     = errors.New("frame: size does not match length")
	ErrChecksum      = errors.New("frame: checksum mismatch")
)

type Framing interface {
	wirestate.Framing

	// MaxSize is the largest frame, header and trailer included.
	MaxSize() int
}

var (
	_ Framing = &frame32{}
	_ Framing = &checked{}
)

const headerSize = 4

// New32 returns a framing for frames of up to maxsize bytes.
// It prefixes the data by its length in 32bit big endian format.
func New32(maxsize int) Framing {
	return &frame32{maxsize: maxsize}
}

type frame32 struct {
	maxsize int
}

func (f *frame32) DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) > f.maxsize {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes, max %d", len(frame), f.maxsize)
	}
	if len(frame) < headerSize {
		return nil, errors.Wrapf(ErrShortFrame, "%d bytes", len(frame))
	}

	size := uint64(binary.BigEndian.Uint32(frame[:headerSize]))
	if size != uint64(len(frame)-headerSize) {
		return nil, errors.Wrapf(ErrFrameSize, "header says %d, got %d", size, len(frame)-headerSize)
	}
	return frame[headerSize:], nil
}

func (f *frame32) EncodeFrame(data []byte) ([]byte, error) {
	if len(data)+headerSize > f.maxsize || uint64(len(data)) > uint64(^uint32(0)) {
		return nil, errors.Wrapf(ErrFrameTooLarge, "%d bytes, max %d", len(data)+headerSize, f.maxsize)
	}

	frame := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint32(frame[:headerSize], uint32(len(data)))
	copy(frame[headerSize:], data)

	return frame, nil
}

func (f *frame32) MaxSize() int {
	return f.maxsize
}

const digestSize = 8

// NewChecked is like New32 but appends the xxhash64 of the data in big
// endian format, and refuses frames whose digest does not match.
func NewChecked(maxsize int) Framing {
	return &checked{inner: frame32{maxsize: maxsize - digestSize}}
}

type checked struct {
	inner frame32
}

func (f *checked) DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < headerSize+digestSize {
		return nil, errors.Wrapf(ErrShortFrame, "%d bytes", len(frame))
	}

	body, sum := frame[:len(frame)-digestSize], frame[len(frame)-digestSize:]
	data, err := f.inner.DecodeFrame(body)
	if err != nil {
		return nil, err
	}

	if want, got := binary.BigEndian.Uint64(sum), xxhash.Sum64(data); want != got {
		return nil, errors.Wrapf(ErrChecksum, "want %016x, got %016x", want, got)
	}
	return data, nil
}

func (f *checked) EncodeFrame(data []byte) ([]byte, error) {
	frame, err := f.inner.EncodeFrame(data)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint64(frame, xxhash.Sum64(data)), nil
}

func (f *checked) MaxSize() int {
	return f.inner.maxsize + digestSize
}
