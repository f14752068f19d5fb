// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package delta

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssbc/wirestate/packet"
)

// scoreMap is what Map and UMap have in common for string keys and int values.
type scoreMap interface {
	Index(string) *int
	Set(string, int)
	Erase(string) bool
	EraseUntracked(string) bool
	Get(string) (int, bool)
	Has(string) bool
	Len() int
	Items() map[string]int
	Dirty() bool
	Pending() int
	Calculate() Payload[string, int]
	WriteDelta(*packet.Packet) error
	Read(*packet.Packet) error
	Apply(Payload[string, int])
}

var newScoreMaps = map[string]func() scoreMap{
	"ordered":   func() scoreMap { return NewMap[string, int]() },
	"unordered": func() scoreMap { return NewUMap[string, int]() },
}

func TestMaps(t *testing.T) {
	for name, newMap := range newScoreMaps {
		t.Run(name, func(t *testing.T) {
			t.Run("Calculate", testMapCalculate(newMap))
			t.Run("IndexAlwaysRecords", testMapIndexAlwaysRecords(newMap))
			t.Run("AddThenErase", testMapAddThenErase(newMap))
			t.Run("Untracked", testMapUntracked(newMap))
			t.Run("Replicates", testMapReplicates(newMap))
		})
	}
}

func testMapCalculate(newMap func() scoreMap) func(*testing.T) {
	return func(t *testing.T) {
		r := require.New(t)

		m := newMap()
		m.Set("alice", 1)
		m.Set("bob", 2)
		*m.Index("alice") += 10
		r.True(m.Erase("bob"))

		// bob's addition is left out, the removal describes the outcome
		r.Equal(Payload[string, int]{
			Addition("alice", 11),
			Addition("alice", 11),
			Removal[string, int]("bob"),
		}, m.Calculate())
		r.False(m.Dirty())
	}
}

// Index is a lookup-or-create that records an addition on every call, even
// when it is only used to read.
func testMapIndexAlwaysRecords(newMap func() scoreMap) func(*testing.T) {
	return func(t *testing.T) {
		r := require.New(t)

		m := newMap()
		m.Set("carol", 5)
		m.Calculate()
		r.False(m.Dirty())

		v, ok := m.Get("carol")
		r.True(ok)
		r.Equal(5, v)
		r.False(m.Dirty(), "Get must not record")

		r.Equal(5, *m.Index("carol"))
		r.True(m.Dirty())
		r.Equal(Payload[string, int]{Addition("carol", 5)}, m.Calculate())

		r.Equal(0, *m.Index("dave"), "missing keys are created")
		r.True(m.Has("dave"))
		r.Equal(Payload[string, int]{Addition("dave", 0)}, m.Calculate())

		r.Empty(m.Calculate())
	}
}

func testMapAddThenErase(newMap func() scoreMap) func(*testing.T) {
	return func(t *testing.T) {
		r := require.New(t)

		m := newMap()
		m.Set("eve", 1)
		r.True(m.Erase("eve"))
		r.False(m.Erase("eve"), "nothing left to remove")

		r.Equal(Payload[string, int]{
			Removal[string, int]("eve"),
			Removal[string, int]("eve"),
		}, m.Calculate())

		m.Set("eve", 1)
		m.Erase("eve")
		m.Set("eve", 2)
		r.Equal(Payload[string, int]{
			Addition("eve", 2),
			Removal[string, int]("eve"),
			Addition("eve", 2),
		}, m.Calculate())
	}
}

func testMapUntracked(newMap func() scoreMap) func(*testing.T) {
	return func(t *testing.T) {
		r := require.New(t)

		m := newMap()
		m.Apply(Payload[string, int]{Addition("frank", 3), Addition("grace", 4), Removal[string, int]("frank")})
		r.False(m.Dirty())
		r.Equal(map[string]int{"grace": 4}, m.Items())

		r.True(m.EraseUntracked("grace"))
		r.False(m.Dirty())
		r.Zero(m.Len())
	}
}

func testMapReplicates(newMap func() scoreMap) func(*testing.T) {
	return func(t *testing.T) {
		for seed := int64(1); seed <= 5; seed++ {
			r := require.New(t)
			rng := rand.New(rand.NewSource(seed))

			sender, receiver := newMap(), newMap()
			for tick := 0; tick < 20; tick++ {
				for op := 0; op < 15; op++ {
					key := fmt.Sprintf("k%d", rng.Intn(8))
					switch rng.Intn(4) {
					case 0:
						sender.Erase(key)
					case 1:
						*sender.Index(key) += rng.Intn(100)
					default:
						sender.Set(key, rng.Intn(1000))
					}
				}

				out := packet.New(packet.WithLengthFormat(packet.UInt8))
				r.NoError(sender.WriteDelta(out))

				in := packet.FromBytes(out.Bytes(), packet.WithLengthFormat(packet.UInt8))
				r.NoError(receiver.Read(in))
				r.Zero(in.Remaining())

				r.Equal(sender.Items(), receiver.Items(), "seed %d tick %d", seed, tick)
				r.False(receiver.Dirty())
			}
		}
	}
}

func TestMapOrderedIteration(t *testing.T) {
	r := require.New(t)

	m := NewMap[int, string]()
	for _, k := range []int{5, 1, 4, 2, 3} {
		m.Set(k, fmt.Sprint(k))
	}
	m.Erase(4)
	r.Equal([]int{1, 2, 3, 5}, m.Keys())

	var seen []int
	for k, v := range m.All() {
		r.Equal(fmt.Sprint(k), v)
		seen = append(seen, k)
	}
	r.Equal([]int{1, 2, 3, 5}, seen)

	m.Clear()
	r.True(m.Empty())
	r.Empty(m.Keys())
}

func TestMapSnapshot(t *testing.T) {
	r := require.New(t)

	m := NewMap[uint8, uint8]()
	m.Set(2, 20)
	m.Set(1, 10)

	p := packet.New(packet.WithLengthFormat(packet.UInt8))
	r.NoError(packet.Write(p, *m))
	r.Equal([]byte{2, 1, 10, 2, 20}, p.Bytes(), "same wire form as a plain map")

	var plain map[uint8]uint8
	r.NoError(packet.Unmarshal(p.Bytes(), packet.UInt8, &plain))
	r.Equal(map[uint8]uint8{1: 10, 2: 20}, plain)

	got := NewUMap[uint8, uint8]()
	got.Set(9, 9)
	r.NoError(packet.ReadInto(p, got))
	r.Equal(m.Items(), got.Items())
	r.False(got.Dirty())
}

func TestMapZeroValue(t *testing.T) {
	r := require.New(t)

	var m UMap[string, bool]
	m.Set("ok", true)
	v, ok := m.Get("ok")
	r.True(ok)
	r.True(v)
	r.Equal(1, m.Pending())
}

func TestMapDecodedKeepsOrder(t *testing.T) {
	r := require.New(t)

	data, err := packet.Marshal(map[int16]string{3: "c", -1: "a", 2: "b"}, packet.UInt16)
	r.NoError(err)

	var m Map[int16, string]
	r.NoError(packet.Unmarshal(data, packet.UInt16, &m))
	r.Equal([]int16{-1, 2, 3}, m.Keys())
}

func TestMapTruncatedSnapshot(t *testing.T) {
	r := require.New(t)

	src := NewMap[uint8, uint8]()
	src.Set(1, 10)
	src.Set(2, 20)
	data, err := packet.Marshal(*src, packet.UInt8)
	r.NoError(err)

	got := NewMap[uint8, uint8]()
	got.Set(9, 90)
	for cut := 0; cut < len(data); cut++ {
		err := packet.ReadInto(packet.FromBytes(data[:cut], packet.WithLengthFormat(packet.UInt8)), got)
		r.True(packet.IsUnderrun(err), "cut at %d: %v", cut, err)
		r.Equal(map[uint8]uint8{9: 90}, got.Items(), "cut at %d", cut)
		r.Equal(1, got.Pending())
	}
}

func TestMapHugeCountOfEmptyEntries(t *testing.T) {
	r := require.New(t)

	p := packet.New(packet.WithLengthFormat(packet.UInt64))
	r.NoError(p.WriteLength(1 << 62))

	var m UMap[struct{}, struct{}]
	r.NoError(packet.ReadInto(p, &m))
	r.Equal(1, m.Len())
}
