// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package replication

import (
	"context"
	"sync"

	"github.com/dgraph-io/sroar"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/ssbc/go-luigi"
	"go.mindeco.de/log"
	"go.mindeco.de/log/level"

	"github.com/ssbc/wirestate"
	"github.com/ssbc/wirestate/packet"
)

// Receiver is a sink for the frames of a Sender. Every frame is applied to
// the tracker registered under the channel of each of its blocks.
type Receiver struct {
	mu sync.Mutex

	framing wirestate.Framing
	lf      packet.LengthFormat
	logger  log.Logger

	trackers map[uint16]wirestate.Tracker

	session uuid.UUID
	last    uint64
	seen    *sroar.Bitmap
	tick    luigi.Observable
	closed  bool
}

var _ luigi.Sink = (*Receiver)(nil)

func NewReceiver(opts ...Option) (*Receiver, error) {
	o, err := makeOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Receiver{
		framing:  o.cfg.Framing(),
		lf:       o.cfg.LengthFormat,
		logger:   log.With(o.logger, "unit", "receiver"),
		trackers: make(map[uint16]wirestate.Tracker),
		seen:     sroar.NewBitmap(),
		tick:     luigi.NewObservable(uint64(0)),
	}, nil
}

func (r *Receiver) Register(ch uint16, t wirestate.Tracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, has := r.trackers[ch]; has {
		return errors.Wrapf(ErrChannelTaken, "channel %d", ch)
	}
	r.trackers[ch] = t
	return nil
}

// Tick holds the sequence number of the last applied tick.
func (r *Receiver) Tick() luigi.Observable { return r.tick }

// Session returns the id of the sender the last frame came from.
func (r *Receiver) Session() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Pour decodes and applies one frame. Frames repeating a tick of the
// current session are dropped. A frame from a new session forgets which
// ticks were seen; the trackers are left as they are.
//
// Within a session ticks are applied strictly in order. A tick that does not
// follow the last applied one is refused with ErrGap, since positional
// payloads only make sense against the state they were recorded on. The
// first frame of a session, or after Resync, is taken at any number.
//
// If a tracker fails to apply its block, the blocks before it stay applied.
func (r *Receiver) Pour(ctx context.Context, v interface{}) error {
	frame, ok := v.([]byte)
	if !ok {
		FramesDropped.WithLabelValues("malformed").Inc()
		return errors.Wrapf(ErrUnexpectedType, "got %T", v)
	}

	seq, applied, err := r.pour(frame)
	if err != nil || !applied {
		return err
	}

	// outside of the lock, observers may call back into the receiver
	return r.tick.Set(seq)
}

func (r *Receiver) pour(frame []byte) (uint64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, false, luigi.EOS{}
	}

	data, err := r.framing.DecodeFrame(frame)
	if err != nil {
		FramesDropped.WithLabelValues("malformed").Inc()
		return 0, false, errors.Wrap(err, "replication: bad frame")
	}

	p := packet.FromBytes(data, packet.WithLengthFormat(r.lf))
	hdr, err := packet.Read[header](p)
	if err != nil {
		FramesDropped.WithLabelValues("malformed").Inc()
		return 0, false, errors.Wrap(err, "replication: bad tick header")
	}

	session := uuid.UUID(hdr.Session)
	if session != r.session {
		level.Info(r.logger).Log("event", "new session", "session", session, "previous", r.session)
		r.resync(session)
	}

	if r.seen.Contains(hdr.Seq) {
		FramesDropped.WithLabelValues("duplicate").Inc()
		level.Debug(r.logger).Log("event", "duplicate", "seq", hdr.Seq)
		return 0, false, nil
	}
	if r.seen.GetCardinality() > 0 && hdr.Seq != r.last+1 {
		FramesDropped.WithLabelValues("gap").Inc()
		level.Warn(r.logger).Log("event", "gap", "seq", hdr.Seq, "last", r.last)
		return 0, false, errors.Wrapf(ErrGap, "tick %d after %d", hdr.Seq, r.last)
	}

	if err := r.apply(p); err != nil {
		FramesDropped.WithLabelValues("apply").Inc()
		return 0, false, errors.Wrapf(err, "replication: failed to apply tick %d", hdr.Seq)
	}

	r.seen.Set(hdr.Seq)
	r.last = hdr.Seq
	FramesApplied.Inc()
	return hdr.Seq, true, nil
}

// Resync forgets the position in the current session. Call it after the
// trackers were restored from a snapshot; the next frame is applied whatever
// its sequence number.
func (r *Receiver) Resync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resync(r.session)
}

func (r *Receiver) resync(session uuid.UUID) {
	r.session = session
	r.seen = sroar.NewBitmap()
	r.last = 0
}

func (r *Receiver) apply(p *packet.Packet) error {
	n, err := p.ReadLength()
	if err != nil {
		return errors.Wrap(err, "block count")
	}

	for i := uint64(0); i < n; i++ {
		b, err := readBlock(p)
		if err != nil {
			return errors.Wrapf(err, "block %d of %d", i, n)
		}

		t, has := r.trackers[b.channel]
		if !has {
			BlocksApplied.WithLabelValues("unknown").Inc()
			level.Debug(r.logger).Log("event", "skipped", "channel", b.channel)
			continue
		}

		if err := t.Read(b.payload); err != nil {
			BlocksApplied.WithLabelValues("failed").Inc()
			return errors.Wrapf(err, "channel %d", b.channel)
		}
		if left := b.payload.Remaining(); left != 0 {
			BlocksApplied.WithLabelValues("failed").Inc()
			return errors.Wrapf(ErrBlockSize, "channel %d left %d bytes", b.channel, left)
		}
		BlocksApplied.WithLabelValues("applied").Inc()
	}

	if left := p.Remaining(); left != 0 {
		return errors.Wrapf(packet.ErrTrailingBytes, "%d bytes after %d blocks", left, n)
	}
	return nil
}

func (r *Receiver) Close() error {
	return r.CloseWithError(nil)
}

func (r *Receiver) CloseWithError(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if err != nil {
		level.Warn(r.logger).Log("event", "closed", "err", err)
	}
	return nil
}
