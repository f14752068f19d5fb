// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package replication moves the changes of many delta containers between
// two processes, one tick at a time.
//
// A tick is one frame holding a packet:
//
//	session  [16]byte  id of the sending process
//	seq      uint64    tick number, starting at 1
//	count    length    number of blocks
//	blocks   count times:
//	  channel  uint16
//	  size     uint32  bytes of payload that follow
//	  payload  the delta payload of the tracker on channel
//
// Fixed values are in host byte order like everything else in a packet.
package replication // import "github.com/ssbc/wirestate/replication"

import (
	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/packet"
)

var (
	ErrChannelTaken   = errors.New("replication: channel already registered")
	ErrUnexpectedType = errors.New("replication: expected a []byte frame")
	ErrBlockSize      = errors.New("replication: block size does not match payload")
	ErrGap            = errors.New("replication: tick out of order")
)

type header struct {
	Session [16]byte
	Seq     uint64
}

type block struct {
	channel uint16
	payload *packet.Packet
}

// readBlock consumes a block header and returns its payload as a packet of
// its own, so that a tracker cannot read into the next block.
func readBlock(p *packet.Packet) (block, error) {
	ch, err := packet.ReadFixed[uint16](p)
	if err != nil {
		return block{}, errors.Wrap(err, "block channel")
	}
	size, err := packet.ReadFixed[uint32](p)
	if err != nil {
		return block{}, errors.Wrapf(err, "block size of channel %d", ch)
	}
	data, err := p.ReadRaw(int(size))
	if err != nil {
		return block{}, errors.Wrapf(err, "block payload of channel %d", ch)
	}
	return block{
		channel: ch,
		payload: packet.FromBytes(data, packet.WithLengthFormat(p.LengthFormat())),
	}, nil
}
