// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package wirestate holds the interfaces shared by the packet codec, the
// delta containers and the replication layer built on top of them.
package wirestate // import "github.com/ssbc/wirestate"

// Framing wraps an encoded packet for transport and unwraps it again.
type Framing interface {
	DecodeFrame([]byte) ([]byte, error)
	EncodeFrame([]byte) ([]byte, error)
}
