// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package sqlite

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/ssbc/wirestate/internal/persist"
)

type SqliteSaver struct {
	db *sql.DB
}

var _ persist.Saver = (*SqliteSaver)(nil)

const schema = `CREATE TABLE IF NOT EXISTS persisted_state (
	key  TEXT PRIMARY KEY,
	data BLOB NOT NULL
)`

// New opens or creates the database file at path.
func New(path string) (*SqliteSaver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "persist/sqlite: failed to open %s", path)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "persist/sqlite: failed to create table")
	}
	return &SqliteSaver{db: db}, nil
}

func (s SqliteSaver) Close() error {
	return s.db.Close()
}
