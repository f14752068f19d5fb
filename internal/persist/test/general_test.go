// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssbc/wirestate/internal/persist"
	"github.com/ssbc/wirestate/internal/persist/badger"
	"github.com/ssbc/wirestate/internal/persist/fs"
	"github.com/ssbc/wirestate/internal/persist/mkv"
	"github.com/ssbc/wirestate/internal/persist/sqlite"
)

func SimpleSaver(mk func(*testing.T) persist.Saver) func(*testing.T) {
	return func(t *testing.T) {
		r := require.New(t)
		p := mk(t)
		defer p.Close()

		l, err := p.List()
		r.NoError(err)
		r.Len(l, 0, "%v", l)

		k := persist.Key{0, 0, 0, 1}
		d, err := p.Get(k)
		r.EqualError(err, persist.ErrNotFound.Error())
		r.Nil(d)

		testData := []byte("fooo")

		err = p.Put(k, testData)
		r.NoError(err)

		l, err = p.List()
		r.NoError(err)
		r.Len(l, 1)
		r.Equal(k, l[0])

		d, err = p.Get(k)
		r.NoError(err)
		r.Equal(testData, d)

		// overwrite
		err = p.Put(k, []byte("bar"))
		r.NoError(err)
		d, err = p.Get(k)
		r.NoError(err)
		r.Equal([]byte("bar"), d)

		l, err = p.List()
		r.NoError(err)
		r.Len(l, 1)
	}
}

func DeleteSaver(mk func(*testing.T) persist.Saver) func(*testing.T) {
	return func(t *testing.T) {
		r := require.New(t)
		p := mk(t)
		defer p.Close()

		keys := []persist.Key{[]byte("a"), []byte("b"), []byte("c")}
		for i, k := range keys {
			r.NoError(p.Put(k, []byte{byte(i + 1)}))
		}

		r.NoError(p.Delete(keys[1]))
		r.NoError(p.Delete(persist.Key("never-there")))

		_, err := p.Get(keys[1])
		r.Equal(persist.ErrNotFound, err)

		l, err := p.List()
		r.NoError(err)
		r.ElementsMatch([]persist.Key{keys[0], keys[2]}, l)

		d, err := p.Get(keys[2])
		r.NoError(err)
		r.Equal([]byte{3}, d)
	}
}

var savers = map[string]func(*testing.T) persist.Saver{
	"fs":     makeFS,
	"sqlite": makeSqlite,
	"badger": makeBadger,
	"mkv":    makeMKV,
}

func TestSaver(t *testing.T) {
	for name, mk := range savers {
		t.Run(name+"/Simple", SimpleSaver(mk))
		t.Run(name+"/Delete", DeleteSaver(mk))
	}
}

func makeFS(t *testing.T) persist.Saver {
	s, err := fs.New(t.TempDir())
	require.NoError(t, err)
	return s
}

func makeSqlite(t *testing.T) persist.Saver {
	s, err := sqlite.New(filepath.Join(t.TempDir(), "state.sqlite"))
	require.NoError(t, err)
	return s
}

func makeBadger(t *testing.T) persist.Saver {
	s, err := badger.New(t.TempDir())
	require.NoError(t, err)
	return s
}

func makeMKV(t *testing.T) persist.Saver {
	s, err := mkv.New(filepath.Join(t.TempDir(), "state.kv"))
	require.NoError(t, err)
	return s
}
