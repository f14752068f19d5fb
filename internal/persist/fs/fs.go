// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package fs stores every key in its own file, named by the hex encoding
// of the key.
package fs

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/internal/persist"
)

type Saver struct {
	base string
}

var _ persist.Saver = (*Saver)(nil)

// New creates base if needed.
func New(base string) (*Saver, error) {
	if err := os.MkdirAll(base, 0700); err != nil {
		return nil, errors.Wrapf(err, "persist/fs: failed to create %s", base)
	}
	return &Saver{base: base}, nil
}

const tmpSuffix = ".tmp"

func (s Saver) path(key persist.Key) string {
	return filepath.Join(s.base, hex.EncodeToString(key))
}

// Put writes to a temporary file first and renames it into place.
func (s Saver) Put(key persist.Key, data []byte) error {
	p := s.path(key)
	if err := os.WriteFile(p+tmpSuffix, data, 0600); err != nil {
		return errors.Wrap(err, "persist/fs/put: failed to write")
	}
	return errors.Wrap(os.Rename(p+tmpSuffix, p), "persist/fs/put: failed to rename")
}

func (s Saver) Get(key persist.Key) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persist.ErrNotFound
		}
		return nil, errors.Wrap(err, "persist/fs/get: failed to read")
	}
	return data, nil
}

func (s Saver) Delete(key persist.Key) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "persist/fs/delete: failed to remove")
	}
	return nil
}

func (s Saver) List() ([]persist.Key, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, errors.Wrap(err, "persist/fs/list: failed to read directory")
	}

	var keys []persist.Key
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		k, err := hex.DecodeString(name)
		if err != nil {
			return nil, errors.Wrapf(err, "persist/fs/list: invalid key: %q", name)
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return string(keys[i]) < string(keys[j]) })
	return keys, nil
}

func (s Saver) Close() error { return nil }
