// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package snapshot

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/internal/persist"
	"github.com/ssbc/wirestate/internal/persist/badger"
	"github.com/ssbc/wirestate/internal/persist/fs"
	"github.com/ssbc/wirestate/internal/persist/mkv"
	"github.com/ssbc/wirestate/internal/persist/sqlite"
)

// Backend names a storage engine.
type Backend string

const (
	Badger Backend = "badger"
	Sqlite Backend = "sqlite"
	MKV    Backend = "mkv"
	FS     Backend = "fs"
)

var backends = map[Backend]func(dir string) (persist.Saver, error){
	Badger: func(dir string) (persist.Saver, error) { return badger.New(dir) },
	Sqlite: func(dir string) (persist.Saver, error) { return sqlite.New(filepath.Join(dir, "snapshots.sqlite")) },
	MKV:    func(dir string) (persist.Saver, error) { return mkv.New(filepath.Join(dir, "snapshots.kv")) },
	FS:     func(dir string) (persist.Saver, error) { return fs.New(dir) },
}

func (b Backend) String() string { return string(b) }

// Set implements pflag.Value.
func (b *Backend) Set(s string) error {
	if _, ok := backends[Backend(s)]; !ok {
		return errors.Errorf("snapshot: unknown backend %q", s)
	}
	*b = Backend(s)
	return nil
}

func (b *Backend) Type() string { return "backend" }

// OpenSaver opens the raw key/value store of backend b in dir.
func OpenSaver(b Backend, dir string) (persist.Saver, error) {
	open, ok := backends[b]
	if !ok {
		return nil, errors.Errorf("snapshot: unknown backend %q", b)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "snapshot: failed to create %s", dir)
	}
	s, err := open(dir)
	return s, errors.Wrapf(err, "snapshot: failed to open %s store", b)
}

// Open returns a store using backend b in dir.
func Open[T any](b Backend, dir string, opts ...Option) (*Store[T], error) {
	s, err := OpenSaver(b, dir)
	if err != nil {
		return nil, err
	}
	return New[T](s, opts...), nil
}
