// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package replication

import (
	"github.com/google/uuid"
	"go.mindeco.de/log"
)

type options struct {
	cfg     Config
	logger  log.Logger
	session uuid.UUID
}

type Option func(*options)

func WithConfig(c Config) Option {
	return func(o *options) { o.cfg = c }
}

func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSession fixes the session id of a Sender instead of picking a random one.
func WithSession(id uuid.UUID) Option {
	return func(o *options) { o.session = id }
}

func makeOptions(opts []Option) (options, error) {
	o := options{
		cfg:    DefaultConfig(),
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o, o.cfg.Validate()
}
