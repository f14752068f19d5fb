// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package badger

import (
	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/internal/persist"
)

// ModernSaver keeps keys in a badger database, optionally below a prefix
// so that several savers can share one database.
type ModernSaver struct {
	db     *badger.DB
	prefix []byte

	// shared savers do not own db
	shared bool
}

var _ persist.Saver = (*ModernSaver)(nil)

func New(path string) (*ModernSaver, error) {
	db, err := badger.Open(BadgerOpts(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create KV %s", path)
	}
	return &ModernSaver{db: db}, nil
}

// NewShared returns a saver that keeps its keys under prefix in db.
// Closing it leaves db open.
func NewShared(db *badger.DB, prefix []byte) (*ModernSaver, error) {
	if len(prefix) == 0 {
		return nil, errors.New("persist/badger: shared saver needs a prefix")
	}
	return &ModernSaver{db: db, prefix: prefix, shared: true}, nil
}

func (s *ModernSaver) Close() error {
	if s.shared {
		return nil
	}
	return s.db.Close()
}
