// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package wirestate

import (
	"github.com/ssbc/wirestate/delta"
	"github.com/ssbc/wirestate/packet"
)

// Tracker is a container that records its own mutations and can ship them
// to, and replay them from, a packet.
type Tracker interface {
	// Dirty returns true if there are changes that were not written yet.
	Dirty() bool

	// WriteDelta writes the pending changes to the packet and clears them.
	WriteDelta(*packet.Packet) error

	// WritePending writes the pending changes to the packet and keeps them
	// until ClearPending is called.
	WritePending(*packet.Packet) error
	ClearPending()

	// Read consumes changes written by WriteDelta and applies them without
	// recording them.
	Read(*packet.Packet) error
}

var (
	_ Tracker = (*delta.Vector[int])(nil)
	_ Tracker = (*delta.Map[string, int])(nil)
	_ Tracker = (*delta.UMap[string, int])(nil)
)
