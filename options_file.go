package raftio

// options_file.go implements loading Options from a YAML file.
//
// Format:
//
//	create_if_missing: true
//	disable_probe: false
//	max_inflight_writes: 8
//	log_level: info
//
// Keys left out keep their DefaultOptions value. Unknown keys are rejected so
// a misspelled setting does not silently fall back to its default.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// optionsFile mirrors the YAML keys. Pointer fields distinguish "absent"
// from the zero value.
type optionsFile struct {
	CreateIfMissing   *bool   `yaml:"create_if_missing"`
	DisableProbe      *bool   `yaml:"disable_probe"`
	MaxInflightWrites *int    `yaml:"max_inflight_writes"`
	LogLevel          *string `yaml:"log_level"`
}

// LoadOptionsFile reads the options file at path on top of DefaultOptions
// and validates the result.
func LoadOptionsFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}
	opts, err := parseOptions(data)
	if err != nil {
		return nil, fmt.Errorf("options file %s: %w", path, err)
	}
	return opts, nil
}

func parseOptions(data []byte) (*Options, error) {
	var f optionsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	opts := DefaultOptions()
	f.apply(opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (f *optionsFile) apply(opts *Options) {
	if f.CreateIfMissing != nil {
		opts.CreateIfMissing = *f.CreateIfMissing
	}
	if f.DisableProbe != nil {
		opts.DisableProbe = *f.DisableProbe
	}
	if f.MaxInflightWrites != nil {
		opts.MaxInflightWrites = *f.MaxInflightWrites
	}
	if f.LogLevel != nil {
		opts.LogLevel = *f.LogLevel
	}
}
