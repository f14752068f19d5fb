// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package replication

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ssbc/go-luigi"
	"github.com/stretchr/testify/require"

	"github.com/ssbc/wirestate"
	"github.com/ssbc/wirestate/delta"
	"github.com/ssbc/wirestate/framing/basic"
	"github.com/ssbc/wirestate/packet"
)

// collector keeps every frame poured into it.
type collector struct {
	frames [][]byte
}

func (c *collector) sink() luigi.Sink {
	return luigi.FuncSink(func(ctx context.Context, v interface{}, err error) error {
		if err != nil {
			return nil
		}
		c.frames = append(c.frames, v.([]byte))
		return nil
	})
}

func (c *collector) drain() [][]byte {
	fs := c.frames
	c.frames = nil
	return fs
}

type world struct {
	names  *delta.Vector[string]
	scores *delta.Map[string, int64]
	flags  *delta.UMap[uint16, bool]
}

func newWorld() world {
	return world{
		names:  delta.NewVector[string](),
		scores: delta.NewMap[string, int64](),
		flags:  delta.NewUMap[uint16, bool](),
	}
}

func (w world) register(t *testing.T, reg func(uint16, wirestate.Tracker) error) {
	require.NoError(t, reg(1, w.names))
	require.NoError(t, reg(2, w.scores))
	require.NoError(t, reg(3, w.flags))
}

func (w world) mutate(rng *rand.Rand) {
	for i := 0; i < 5; i++ {
		switch n := w.names.Len(); {
		case n == 0 || rng.Intn(2) == 0:
			w.names.PushBack(string(rune('a' + rng.Intn(26))))
		default:
			_ = w.names.Erase(rng.Intn(n))
		}
	}
	if rng.Intn(2) == 0 {
		key := string(rune('A' + rng.Intn(5)))
		if rng.Intn(3) == 0 {
			w.scores.Erase(key)
		} else {
			*w.scores.Index(key) += int64(rng.Intn(10))
		}
	}
	if rng.Intn(3) == 0 {
		w.flags.Set(uint16(rng.Intn(4)), rng.Intn(2) == 0)
	}
}

func requireSameWorld(t *testing.T, want, got world) {
	t.Helper()
	require.Equal(t, want.names.Items(), got.names.Items())
	require.Equal(t, want.scores.Items(), got.scores.Items())
	require.Equal(t, want.flags.Items(), got.flags.Items())
}

func TestReplicates(t *testing.T) {
	configs := map[string]Config{
		"default": DefaultConfig(),
		"uint8+checksum": {
			LengthFormat: packet.UInt8,
			MaxFrameSize: 1 << 16,
			Checksum:     true,
		},
		"uint64": {
			LengthFormat: packet.UInt64,
			MaxFrameSize: 1 << 16,
		},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			r := require.New(t)
			ctx := context.Background()
			rng := rand.New(rand.NewSource(42))

			var c collector
			snd, err := NewSender(c.sink(), WithConfig(cfg))
			r.NoError(err)
			rcv, err := NewReceiver(WithConfig(cfg))
			r.NoError(err)

			src, dst := newWorld(), newWorld()
			src.register(t, snd.Register)
			dst.register(t, rcv.Register)

			for tick := 0; tick < 30; tick++ {
				src.mutate(rng)
				r.NoError(snd.Tick(ctx))

				for _, frame := range c.drain() {
					r.NoError(rcv.Pour(ctx, frame))
				}
				requireSameWorld(t, src, dst)
			}

			r.Equal(snd.Session(), rcv.Session())
			v, err := rcv.Tick().Value()
			r.NoError(err)
			r.Equal(snd.Seq(), v)
		})
	}
}

func TestCleanTickSendsNothing(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	var c collector
	snd, err := NewSender(c.sink())
	r.NoError(err)

	v := delta.NewVector(1, 2, 3)
	r.NoError(snd.Register(7, v))

	r.NoError(snd.Tick(ctx))
	r.Empty(c.frames)
	r.Zero(snd.Seq())

	v.PushBack(4)
	r.NoError(snd.Tick(ctx))
	r.Len(c.frames, 1)
	r.EqualValues(1, snd.Seq())

	r.NoError(snd.Tick(ctx))
	r.Len(c.frames, 1)
}

func TestTickLayout(t *testing.T) {
	r := require.New(t)

	var c collector
	session := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	cfg := Config{LengthFormat: packet.UInt8, MaxFrameSize: 1024}
	snd, err := NewSender(c.sink(), WithConfig(cfg), WithSession(session))
	r.NoError(err)

	v := delta.NewVector[uint8]()
	r.NoError(snd.Register(5, v))
	v.PushBack(9)
	r.NoError(snd.Tick(context.Background()))
	r.Len(c.frames, 1)

	data, err := basic.New32(1024).DecodeFrame(c.frames[0])
	r.NoError(err)

	p := packet.FromBytes(data, packet.WithLengthFormat(packet.UInt8))
	hdr, err := packet.Read[header](p)
	r.NoError(err)
	r.Equal([16]byte(session), hdr.Session)
	r.EqualValues(1, hdr.Seq)

	n, err := p.ReadLength()
	r.NoError(err)
	r.EqualValues(1, n)

	b, err := readBlock(p)
	r.NoError(err)
	r.EqualValues(5, b.channel)
	r.Zero(p.Remaining())

	want, err := packet.Marshal(delta.Payload[uint64, uint8]{delta.Addition[uint64](0, uint8(9))}, packet.UInt8)
	r.NoError(err)
	r.Equal(want, b.payload.Bytes())
}

func TestDuplicatesAndSessions(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	var c collector
	snd, err := NewSender(c.sink())
	r.NoError(err)
	src := delta.NewUMap[string, string]()
	r.NoError(snd.Register(1, src))

	rcv, err := NewReceiver()
	r.NoError(err)
	dst := delta.NewUMap[string, string]()
	r.NoError(rcv.Register(1, dst))

	src.Set("k", "v")
	r.NoError(snd.Tick(ctx))
	frame := c.drain()[0]

	dupes := testutil.ToFloat64(FramesDropped.WithLabelValues("duplicate"))
	applied := testutil.ToFloat64(FramesApplied)

	r.NoError(rcv.Pour(ctx, frame))
	dst.Clear()
	r.NoError(rcv.Pour(ctx, frame), "duplicates are not an error")
	r.Zero(dst.Len(), "duplicate was applied")

	r.Equal(dupes+1, testutil.ToFloat64(FramesDropped.WithLabelValues("duplicate")))
	r.Equal(applied+1, testutil.ToFloat64(FramesApplied))

	// a restarted sender counts from 1 again
	restarted, err := NewSender(c.sink())
	r.NoError(err)
	r.NotEqual(snd.Session(), restarted.Session())
	again := delta.NewUMap[string, string]()
	r.NoError(restarted.Register(1, again))
	again.Set("k", "w")
	r.NoError(restarted.Tick(ctx))

	r.NoError(rcv.Pour(ctx, c.drain()[0]))
	r.Equal(restarted.Session(), rcv.Session())
	got, ok := dst.Get("k")
	r.True(ok)
	r.Equal("w", got)
}

func TestUnknownChannelIsSkipped(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	var c collector
	snd, err := NewSender(c.sink())
	r.NoError(err)
	rcv, err := NewReceiver()
	r.NoError(err)

	a, b := delta.NewVector[string](), delta.NewVector[string]()
	r.NoError(snd.Register(1, a))
	r.NoError(snd.Register(2, b))

	got := delta.NewVector[string]()
	r.NoError(rcv.Register(2, got))

	a.PushBack("only sender knows")
	b.PushBack("shared")
	r.NoError(snd.Tick(ctx))

	unknown := testutil.ToFloat64(BlocksApplied.WithLabelValues("unknown"))
	r.NoError(rcv.Pour(ctx, c.drain()[0]))
	r.Equal([]string{"shared"}, got.Items())
	r.Equal(unknown+1, testutil.ToFloat64(BlocksApplied.WithLabelValues("unknown")))
}

func TestRejects(t *testing.T) {
	ctx := context.Background()

	var c collector
	snd, err := NewSender(c.sink(), WithConfig(Config{LengthFormat: packet.UInt16, MaxFrameSize: 4096, Checksum: true}))
	require.NoError(t, err)
	v := delta.NewVector[int32]()
	require.NoError(t, snd.Register(1, v))
	v.PushBack(1)
	require.NoError(t, snd.Tick(ctx))
	frame := c.drain()[0]

	t.Run("type", func(t *testing.T) {
		rcv, err := NewReceiver()
		require.NoError(t, err)
		err = rcv.Pour(ctx, "not bytes")
		require.True(t, errors.Is(err, ErrUnexpectedType), "got %v", err)
	})

	t.Run("framing", func(t *testing.T) {
		rcv, err := NewReceiver()
		require.NoError(t, err)
		err = rcv.Pour(ctx, frame)
		require.True(t, errors.Is(err, basic.ErrFrameSize), "got %v", err)
	})

	t.Run("checksum", func(t *testing.T) {
		rcv, err := NewReceiver(WithConfig(Config{LengthFormat: packet.UInt16, MaxFrameSize: 4096, Checksum: true}))
		require.NoError(t, err)
		bad := append([]byte(nil), frame...)
		bad[len(bad)-1] ^= 0xff
		err = rcv.Pour(ctx, bad)
		require.True(t, errors.Is(err, basic.ErrChecksum), "got %v", err)
	})

	t.Run("closed", func(t *testing.T) {
		rcv, err := NewReceiver(WithConfig(Config{LengthFormat: packet.UInt16, MaxFrameSize: 4096, Checksum: true}))
		require.NoError(t, err)
		require.NoError(t, rcv.Close())
		err = rcv.Pour(ctx, frame)
		require.True(t, luigi.IsEOS(err), "got %v", err)
	})

	t.Run("diverged", func(t *testing.T) {
		rcv, err := NewReceiver(WithConfig(Config{LengthFormat: packet.UInt16, MaxFrameSize: 4096, Checksum: true}))
		require.NoError(t, err)

		// the vector payload removes position 3 of an empty vector
		dst := delta.NewVector[int32]()
		require.NoError(t, rcv.Register(1, dst))

		w := delta.NewVector[int32](0, 0, 0, 0)
		require.NoError(t, w.Erase(3))
		snd2, err := NewSender(c.sink(), WithConfig(Config{LengthFormat: packet.UInt16, MaxFrameSize: 4096, Checksum: true}))
		require.NoError(t, err)
		require.NoError(t, snd2.Register(1, w))
		require.NoError(t, snd2.Tick(ctx))

		err = rcv.Pour(ctx, c.drain()[0])
		require.True(t, errors.Is(err, delta.ErrIndexOutOfRange), "got %v", err)
	})
}

func TestSenderErrors(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	boom := errors.New("link down")
	failing := luigi.FuncSink(func(ctx context.Context, v interface{}, err error) error {
		return boom
	})

	snd, err := NewSender(failing)
	r.NoError(err)

	v := delta.NewVector[int]()
	r.NoError(snd.Register(1, v))
	r.True(errors.Is(snd.Register(1, v), ErrChannelTaken))

	v.PushBack(1)
	err = snd.Tick(ctx)
	r.True(errors.Is(err, boom), "got %v", err)
	r.Zero(snd.Seq())
	r.True(v.Dirty(), "changes of a failed tick are kept")

	var c collector
	tiny, err := NewSender(c.sink(), WithConfig(Config{LengthFormat: packet.UInt16, MaxFrameSize: minFrameSize}))
	r.NoError(err)
	big := delta.NewVector[string]()
	r.NoError(tiny.Register(1, big))
	big.PushBack("this does not fit into the smallest frame")
	err = tiny.Tick(ctx)
	r.True(errors.Is(err, basic.ErrFrameTooLarge), "got %v", err)
	r.Empty(c.frames)

	_, err = NewSender(c.sink(), WithConfig(Config{LengthFormat: 9, MaxFrameSize: 1024}))
	r.True(errors.Is(err, packet.ErrInvalidLengthFormat))
}

func TestFailedTickIsResent(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	var c collector
	down := true
	sink := luigi.FuncSink(func(ctx context.Context, v interface{}, err error) error {
		if down {
			return errors.New("link down")
		}
		return c.sink().Pour(ctx, v)
	})

	snd, err := NewSender(sink)
	r.NoError(err)
	rcv, err := NewReceiver()
	r.NoError(err)

	src, dst := newWorld(), newWorld()
	src.register(t, snd.Register)
	dst.register(t, rcv.Register)

	src.names.PushBack("a")
	src.scores.Set("x", 1)
	r.Error(snd.Tick(ctx))

	src.names.PushBack("b")
	src.flags.Set(2, true)
	r.Error(snd.Tick(ctx))
	r.Zero(snd.Seq())

	down = false
	r.NoError(snd.Tick(ctx))
	r.EqualValues(1, snd.Seq())
	r.False(src.names.Dirty())
	r.False(src.scores.Dirty())
	r.False(src.flags.Dirty())

	frames := c.drain()
	r.Len(frames, 1)
	r.NoError(rcv.Pour(ctx, frames[0]))
	requireSameWorld(t, src, dst)
}

func TestGapIsRefused(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	var c collector
	snd, err := NewSender(c.sink())
	r.NoError(err)
	src := delta.NewVector[string]()
	r.NoError(snd.Register(1, src))

	for _, s := range []string{"a", "b", "c"} {
		src.PushBack(s)
		r.NoError(snd.Tick(ctx))
	}
	frames := c.drain()
	r.Len(frames, 3)

	rcv, err := NewReceiver()
	r.NoError(err)
	dst := delta.NewVector[string]()
	r.NoError(rcv.Register(1, dst))

	gaps := testutil.ToFloat64(FramesDropped.WithLabelValues("gap"))
	r.NoError(rcv.Pour(ctx, frames[0]))
	err = rcv.Pour(ctx, frames[2])
	r.True(errors.Is(err, ErrGap), "got %v", err)
	r.Equal([]string{"a"}, dst.Items(), "tick 3 was applied")
	r.Equal(gaps+1, testutil.ToFloat64(FramesDropped.WithLabelValues("gap")))

	r.NoError(rcv.Pour(ctx, frames[1]))
	r.NoError(rcv.Pour(ctx, frames[2]))
	r.Equal(src.Items(), dst.Items())

	// a receiver restored from a snapshot picks up mid-session
	restored := delta.NewVector("a", "b", "c")
	late, err := NewReceiver()
	r.NoError(err)
	r.NoError(late.Register(1, restored))
	src.PushBack("d")
	r.NoError(snd.Tick(ctx))
	r.NoError(late.Pour(ctx, c.drain()[0]))
	r.Equal(src.Items(), restored.Items())

	src.PushBack("e")
	r.NoError(snd.Tick(ctx))
	src.PushBack("f")
	r.NoError(snd.Tick(ctx))
	frames = c.drain()
	r.True(errors.Is(late.Pour(ctx, frames[1]), ErrGap))

	r.NoError(restored.UnmarshalBinary(mustBinary(t, src)))
	late.Resync()
	src.PushBack("g")
	r.NoError(snd.Tick(ctx))
	r.NoError(late.Pour(ctx, c.drain()[0]))
	r.Equal(src.Items(), restored.Items())
}

func mustBinary(t *testing.T, v *delta.Vector[string]) []byte {
	data, err := v.MarshalBinary()
	require.NoError(t, err)
	return data
}

func TestTickObservable(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	var c collector
	snd, err := NewSender(c.sink())
	r.NoError(err)
	rcv, err := NewReceiver()
	r.NoError(err)

	src, dst := delta.NewMap[int, int](), delta.NewMap[int, int]()
	r.NoError(snd.Register(1, src))
	r.NoError(rcv.Register(1, dst))

	var seen []uint64
	cancel := rcv.Tick().Register(luigi.FuncSink(func(ctx context.Context, v interface{}, err error) error {
		if err != nil {
			return nil
		}
		seen = append(seen, v.(uint64))
		return nil
	}))
	defer cancel()

	for i := 0; i < 3; i++ {
		src.Set(i, i*i)
		r.NoError(snd.Tick(ctx))
		r.NoError(rcv.Pour(ctx, c.drain()[0]))
	}

	r.NotEmpty(seen)
	r.Equal([]uint64{1, 2, 3}, seen[len(seen)-3:])
}

func TestConfig(t *testing.T) {
	r := require.New(t)

	cfg, err := ParseConfig([]byte("length_format: uint8\nchecksum: true\n"))
	r.NoError(err)
	r.Equal(Config{LengthFormat: packet.UInt8, MaxFrameSize: DefaultConfig().MaxFrameSize, Checksum: true}, cfg)

	_, err = ParseConfig([]byte("length_format: uint12\n"))
	r.Error(err)

	_, err = ParseConfig([]byte("max_frame_size: 8\n"))
	r.Error(err)

	path := filepath.Join(t.TempDir(), "replication.yaml")
	r.NoError(os.WriteFile(path, []byte("length_format: \"32\"\nmax_frame_size: 4096\n"), 0600))
	cfg, err = LoadConfig(path)
	r.NoError(err)
	r.Equal(packet.UInt32, cfg.LengthFormat)
	r.Equal(4096, cfg.MaxFrameSize)
	r.False(cfg.Checksum)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	r.Error(err)
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.Error(t, RegisterMetrics(reg), "registering twice must fail")
}
