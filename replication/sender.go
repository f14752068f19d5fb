// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package replication

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/ssbc/go-luigi"
	"go.mindeco.de/log"
	"go.mindeco.de/log/level"

	"github.com/ssbc/wirestate"
	"github.com/ssbc/wirestate/packet"
)

// Sender collects the changes of its trackers into ticks and pours the
// framed ticks into a sink.
type Sender struct {
	mu sync.Mutex

	sink    luigi.Sink
	framing wirestate.Framing
	lf      packet.LengthFormat
	logger  log.Logger

	session  uuid.UUID
	seq      uint64
	trackers map[uint16]wirestate.Tracker
	channels []uint16
}

func NewSender(sink luigi.Sink, opts ...Option) (*Sender, error) {
	o, err := makeOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.session == uuid.Nil {
		o.session = uuid.New()
	}

	return &Sender{
		sink:     sink,
		framing:  o.cfg.Framing(),
		lf:       o.cfg.LengthFormat,
		logger:   log.With(o.logger, "unit", "sender", "session", o.session),
		session:  o.session,
		trackers: make(map[uint16]wirestate.Tracker),
	}, nil
}

// Register adds t under channel ch. The receiver has to register the
// matching tracker under the same channel.
func (s *Sender) Register(ch uint16, t wirestate.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, has := s.trackers[ch]; has {
		return errors.Wrapf(ErrChannelTaken, "channel %d", ch)
	}
	s.trackers[ch] = t
	i, _ := slices.BinarySearch(s.channels, ch)
	s.channels = slices.Insert(s.channels, i, ch)
	return nil
}

func (s *Sender) Session() uuid.UUID { return s.session }

// Seq returns the number of the last tick that was sent.
func (s *Sender) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Tick sends the pending changes of all dirty trackers as one frame.
// Nothing is sent if no tracker is dirty.
//
// The changelogs are only cleared once the frame was poured. After an error
// the trackers still hold their changes and the next Tick sends them again
// under the same sequence number. Trackers must not be mutated during Tick.
func (s *Sender) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dirty []uint16
	for _, ch := range s.channels {
		if s.trackers[ch].Dirty() {
			dirty = append(dirty, ch)
		}
	}
	if len(dirty) == 0 {
		return nil
	}

	p, err := s.encode(s.seq+1, dirty)
	if err != nil {
		return errors.Wrapf(err, "replication: failed to encode tick %d", s.seq+1)
	}

	frame, err := s.framing.EncodeFrame(p.Bytes())
	if err != nil {
		return errors.Wrapf(err, "replication: failed to frame tick %d", s.seq+1)
	}

	if err := s.sink.Pour(ctx, frame); err != nil {
		return errors.Wrapf(err, "replication: failed to send tick %d", s.seq+1)
	}
	s.seq++
	for _, ch := range dirty {
		s.trackers[ch].ClearPending()
	}

	FramesSent.Inc()
	BytesSent.Add(float64(len(frame)))
	level.Debug(s.logger).Log("event", "tick", "seq", s.seq, "blocks", len(dirty), "bytes", len(frame))
	return nil
}

func (s *Sender) encode(seq uint64, channels []uint16) (*packet.Packet, error) {
	if n := uint64(len(channels)); n > s.lf.Max() {
		return nil, errors.Wrapf(packet.ErrLengthOverflow, "%d blocks with %s", n, s.lf)
	}

	p := packet.New(packet.WithLengthFormat(s.lf))
	if err := packet.Write(p, header{Session: s.session, Seq: seq}); err != nil {
		return nil, errors.Wrap(err, "header")
	}

	countAt, err := p.ReserveLength()
	if err != nil {
		return nil, errors.Wrap(err, "block count")
	}

	for _, ch := range channels {
		packet.WriteFixed(p, ch)
		sizeAt := p.Size()
		packet.WriteFixed(p, uint32(0))

		start := p.Size()
		if err := s.trackers[ch].WritePending(p); err != nil {
			return nil, errors.Wrapf(err, "channel %d", ch)
		}
		if err := packet.PatchFixed(p, sizeAt, uint32(p.Size()-start)); err != nil {
			return nil, errors.Wrapf(err, "channel %d", ch)
		}
	}

	if err := p.PatchLength(countAt, uint64(len(channels))); err != nil {
		return nil, errors.Wrap(err, "block count")
	}
	return p, nil
}
