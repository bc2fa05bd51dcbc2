package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the command line flags. Flags given explicitly on the
// command line win over values from the file.
type fileConfig struct {
	Root        string   `yaml:"root"`
	File        string   `yaml:"file"`
	Ext         string   `yaml:"ext"`
	Workers     int      `yaml:"workers"`
	Writers     int      `yaml:"writers"`
	Capacity    int      `yaml:"capacity"`
	MaxPathLen  int      `yaml:"max_path_len"`
	Buffer      string   `yaml:"buffer"`
	MMap        *bool    `yaml:"mmap"`
	Algorithm   string   `yaml:"algorithm"`
	ExcludeDirs []string `yaml:"exclude_dirs"`
	LogFile     string   `yaml:"log_file"`
	LogLevel    string   `yaml:"log_level"`
	Progress    *bool    `yaml:"progress"`
}

var _ pflag.Value = (*sizeValue)(nil)

// loadConfig reads a YAML config file. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// apply sets every flag the user did not pass from the config file.
func (c fileConfig) apply(flags *pflag.FlagSet) error {
	set := func(name, value string) error {
		if value == "" {
			return nil
		}
		f := flags.Lookup(name)
		if f == nil || f.Changed {
			return nil
		}
		if err := f.Value.Set(value); err != nil {
			return fmt.Errorf("config key for --%s: %w", name, err)
		}
		return nil
	}
	itoa := func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	}
	btoa := func(b *bool) string {
		if b == nil {
			return ""
		}
		return strconv.FormatBool(*b)
	}

	pairs := []struct{ name, value string }{
		{"file", c.File},
		{"ext", c.Ext},
		{"workers", itoa(c.Workers)},
		{"writers", itoa(c.Writers)},
		{"capacity", itoa(c.Capacity)},
		{"max-path-len", itoa(c.MaxPathLen)},
		{"buffer", c.Buffer},
		{"mmap", btoa(c.MMap)},
		{"algo", c.Algorithm},
		{"log-file", c.LogFile},
		{"log-level", c.LogLevel},
		{"progress", btoa(c.Progress)},
	}
	for _, p := range pairs {
		if err := set(p.name, p.value); err != nil {
			return err
		}
	}

	if f := flags.Lookup("exclude-dir"); f != nil && !f.Changed {
		for _, dir := range c.ExcludeDirs {
			if err := f.Value.Set(dir); err != nil {
				return err
			}
		}
	}
	return nil
}
