// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// Package persist is a minimal key/value abstraction over the storage
// engines snapshots can be kept in.
package persist

import "github.com/pkg/errors"

type Key []byte

var ErrNotFound = errors.New("persist: item not found")

//go:generate counterfeiter -o persistfakes/fake_saver.go . Saver

type Saver interface {
	Put(Key, []byte) error
	Get(Key) ([]byte, error)
	Delete(Key) error

	List() ([]Key, error)

	Close() error
}
