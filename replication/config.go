// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package replication

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ssbc/wirestate/framing/basic"
	"github.com/ssbc/wirestate/packet"
)

// Config has to be the same on both ends of a replication link.
type Config struct {
	// LengthFormat is the width of every count inside a tick.
	LengthFormat packet.LengthFormat `yaml:"length_format"`

	// MaxFrameSize limits a framed tick, header and checksum included.
	MaxFrameSize int `yaml:"max_frame_size"`

	// Checksum appends an xxhash64 digest to every frame.
	Checksum bool `yaml:"checksum"`
}

func DefaultConfig() Config {
	return Config{
		LengthFormat: packet.DefaultLengthFormat,
		MaxFrameSize: 1 << 20,
	}
}

func (c Config) Validate() error {
	if _, err := c.LengthFormat.Size(); err != nil {
		return errors.Wrapf(err, "replication: length_format %d", c.LengthFormat)
	}
	if c.MaxFrameSize < minFrameSize {
		return errors.Errorf("replication: max_frame_size %d is below %d", c.MaxFrameSize, minFrameSize)
	}
	return nil
}

// smallest frame that can hold an empty tick with a checksum
const minFrameSize = 4 + 16 + 8 + 8 + 8

// Framing returns the framing both ends use.
func (c Config) Framing() basic.Framing {
	if c.Checksum {
		return basic.NewChecked(c.MaxFrameSize)
	}
	return basic.New32(c.MaxFrameSize)
}

// ParseConfig reads a YAML document. Fields it does not set keep their
// defaults.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, errors.Wrap(err, "replication: invalid config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "replication: failed to read config")
	}
	return ParseConfig(data)
}
