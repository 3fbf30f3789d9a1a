package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/soypat/fortcheck/sema"
)

const defaultConfigFile = ".docheck.yaml"

// config is the contents of a .docheck.yaml file. Environment variables
// and command-line flags override its fields.
type config struct {
	Std        string `yaml:"std"`
	WarnRealDo bool   `yaml:"warn-real-do"`
	Parallel   bool   `yaml:"parallel"`
	NoColor    bool   `yaml:"no-color"`
}

// loadConfig reads the configuration file at path. A missing file is not
// an error when path is the default name.
func loadConfig(path string) (config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	var cfg config
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return cfg, nil
	} else if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overrides cfg with DOCHECK_STD, DOCHECK_WARN_REAL_DO and NO_COLOR.
func (cfg *config) applyEnv() {
	if env.Has("DOCHECK_STD") {
		cfg.Std = env.Str("DOCHECK_STD")
	}
	if env.Has("DOCHECK_WARN_REAL_DO") {
		cfg.WarnRealDo = env.Bool("DOCHECK_WARN_REAL_DO")
	}
	if env.Has("NO_COLOR") {
		cfg.NoColor = true
	}
}

func (cfg config) options() (sema.Options, error) {
	opts := sema.Options{WarnRealDoControls: cfg.WarnRealDo}
	if cfg.Std != "" {
		c, err := sema.ParseConformance(cfg.Std)
		if err != nil {
			return opts, err
		}
		opts.Conformance = c
	}
	return opts, nil
}
