// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package snapshot keeps the full state of values, delta containers
// included, in a key/value store. Changelogs are never part of a snapshot.
package snapshot // import "github.com/ssbc/wirestate/snapshot"

import (
	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/codec"
	"github.com/ssbc/wirestate/codec/wire"
	"github.com/ssbc/wirestate/internal/persist"
	"github.com/ssbc/wirestate/packet"
)

// ErrNotFound is returned by Get for keys that were never stored.
var ErrNotFound = errors.New("snapshot: not found")

// Store saves values of type T under string keys.
type Store[T any] struct {
	saver persist.Saver
	codec codec.Codec
}

type config struct {
	newCodec codec.NewCodecFunc
}

type Option func(*config)

// WithCodec replaces the default wire codec.
func WithCodec(newCodec codec.NewCodecFunc) Option {
	return func(c *config) { c.newCodec = newCodec }
}

// WithLengthFormat sets the count width of the default wire codec.
func WithLengthFormat(lf packet.LengthFormat) Option {
	return func(c *config) { c.newCodec = wire.NewCodecWithFormat(lf) }
}

// New returns a store over s. The store owns s and closes it on Close.
func New[T any](s persist.Saver, opts ...Option) *Store[T] {
	cfg := config{newCodec: wire.NewCodec}
	for _, o := range opts {
		o(&cfg)
	}

	var zero T
	return &Store[T]{
		saver: s,
		codec: cfg.newCodec(zero),
	}
}

func (s *Store[T]) Put(key string, v T) error {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "snapshot: failed to encode %q", key)
	}
	return errors.Wrapf(s.saver.Put(persist.Key(key), data), "snapshot: failed to store %q", key)
}

func (s *Store[T]) Get(key string) (T, error) {
	var zero T
	data, err := s.saver.Get(persist.Key(key))
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return zero, errors.Wrapf(ErrNotFound, "key %q", key)
		}
		return zero, errors.Wrapf(err, "snapshot: failed to load %q", key)
	}

	v, err := s.codec.Unmarshal(data)
	if err != nil {
		return zero, errors.Wrapf(err, "snapshot: failed to decode %q", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("snapshot: codec returned %T for %q", v, key)
	}
	return t, nil
}

func (s *Store[T]) Delete(key string) error {
	return errors.Wrapf(s.saver.Delete(persist.Key(key)), "snapshot: failed to delete %q", key)
}

// Keys returns the keys of all stored snapshots.
func (s *Store[T]) Keys() ([]string, error) {
	keys, err := s.saver.List()
	if err != nil {
		return nil, errors.Wrap(err, "snapshot: failed to list keys")
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out, nil
}

func (s *Store[T]) Close() error {
	return s.saver.Close()
}
