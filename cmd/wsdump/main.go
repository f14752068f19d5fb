// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

// wsdump lists the snapshots in a store.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.mindeco.de/logging"

	"github.com/ssbc/wirestate/packet"
	"github.com/ssbc/wirestate/snapshot"
)

var check = logging.CheckFatal

func main() {
	backend := snapshot.Badger
	lf := packet.DefaultLengthFormat

	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	flags.Var(&backend, "backend", "storage engine: badger, sqlite, mkv or fs")
	flags.Var(&lengthFormat{&lf}, "length-format", "count width the snapshots were written with")
	raw := flags.Bool("raw", false, "print values as hex instead of decoding the leading count")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <dir>\n", os.Args[0])
		flags.PrintDefaults()
	}
	check(flags.Parse(os.Args[1:]))

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(1)
	}
	logging.SetupLogging(nil)
	log := logging.Logger("wsdump")

	dir := flags.Arg(0)
	s, err := snapshot.OpenSaver(backend, dir)
	check(errors.Wrap(err, "error opening store"))
	defer s.Close()

	keys, err := s.List()
	check(errors.Wrap(err, "error listing keys"))
	log.Log("event", "opened", "backend", backend, "dir", dir, "keys", len(keys))

	for _, k := range keys {
		data, err := s.Get(k)
		check(errors.Wrapf(err, "error loading %q", k))

		fmt.Printf("%q: %d\n", string(k), len(data))
		if *raw {
			fmt.Println(hex.Dump(data))
			continue
		}
		fmt.Println(describe(data, lf) + "\n")
	}
}

// describe reads the leading count most containers start with.
func describe(data []byte, lf packet.LengthFormat) string {
	p := packet.FromBytes(data, packet.WithLengthFormat(lf))
	n, err := p.ReadLength()
	if err != nil {
		return fmt.Sprintf("no %s count: %v", lf, err)
	}
	return fmt.Sprintf("%s count %d, %d bytes follow", lf, n, p.Remaining())
}

// lengthFormat adapts packet.LengthFormat to pflag.Value.
type lengthFormat struct {
	lf *packet.LengthFormat
}

func (f lengthFormat) String() string {
	if f.lf == nil {
		return packet.DefaultLengthFormat.String()
	}
	return f.lf.String()
}

func (f lengthFormat) Set(s string) error { return f.lf.UnmarshalText([]byte(s)) }

func (lengthFormat) Type() string { return "format" }
