// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ozanh/ulan"
	"github.com/ozanh/ulan/importers"
	"github.com/ozanh/ulan/registry"
)

func init() {
	// TOML date and time values are given to programs as strings.
	for _, typ := range []reflect.Type{
		reflect.TypeOf(time.Time{}),
		reflect.TypeOf(toml.LocalDate{}),
		reflect.TypeOf(toml.LocalTime{}),
		reflect.TypeOf(toml.LocalDateTime{}),
	} {
		registry.RegisterObjectConverter(typ, func(in interface{}) (interface{}, bool) {
			if t, ok := in.(time.Time); ok {
				return ulan.String(t.Format(time.RFC3339Nano)), true
			}
			return ulan.String(fmt.Sprint(in)), true
		})
	}
}

// configFile is the name of the project file searched from the directory of
// the given file up to the root.
const configFile = "ulan.toml"

// config is the ulan.toml project file.
//
//	debug = false
//
//	[modules]
//	paths = ["lib"]
//	ext = ".ulan"
//
//	[trace]
//	parser = false
//	compiler = false
//
//	[run]
//	timeout = "10s"
//	max-frames = 1024
//
//	[globals]
//	version = "1.0"
type config struct {
	Debug   bool                   `toml:"debug"`
	Modules modulesConfig          `toml:"modules"`
	Trace   traceConfig            `toml:"trace"`
	Run     runConfig              `toml:"run"`
	Globals map[string]interface{} `toml:"globals"`

	// dir is the directory relative module paths are resolved against.
	dir string
}

type modulesConfig struct {
	Paths []string `toml:"paths,omitempty"`
	Ext   string   `toml:"ext,omitempty"`
}

type traceConfig struct {
	Parser   bool `toml:"parser"`
	Compiler bool `toml:"compiler"`
}

type runConfig struct {
	Timeout   string `toml:"timeout,omitempty"`
	MaxFrames int    `toml:"max-frames"`
}

// findConfig returns the path of the closest ulan.toml walking up from dir,
// or an empty string.
func findConfig(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, configFile)
		if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadConfig reads the config at path. Defaults are returned if path is
// empty.
func loadConfig(path string) (*config, error) {
	cfg := &config{dir: "."}
	if path == "" {
		return cfg, nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = toml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)

	if cfg.Run.MaxFrames < 0 {
		return nil, fmt.Errorf("%s: max-frames must not be negative", path)
	}
	if ext := cfg.Modules.Ext; ext != "" && !strings.HasPrefix(ext, ".") {
		return nil, fmt.Errorf("%s: module extension %q must start with a dot", path, ext)
	}
	if _, err = cfg.timeout(""); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err = cfg.globalDict(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// globalNames returns the sorted names of the [globals] table.
func (c *config) globalNames() []string {
	names := maps.Keys(c.Globals)
	slices.Sort(names)
	return names
}

// globalDict converts the [globals] table to a new global namespace.
func (c *config) globalDict() (*ulan.Dict, error) {
	d := ulan.NewDict()
	for _, name := range c.globalNames() {
		o, err := ulan.ToObject(c.Globals[name])
		if err != nil {
			return nil, fmt.Errorf("globals.%s: %w", name, err)
		}
		d.SetStr(name, o)
	}
	return d, nil
}

// setTrace enables the units named in the comma separated list.
func (c *config) setTrace(units string) {
	for _, u := range strings.Split(units, ",") {
		switch strings.TrimSpace(u) {
		case "parser":
			c.Trace.Parser = true
		case "compiler":
			c.Trace.Compiler = true
		case "all":
			c.Trace.Parser = true
			c.Trace.Compiler = true
		}
	}
}

// timeout returns the run timeout, override takes precedence over the
// configured one.
func (c *config) timeout(override string) (time.Duration, error) {
	s := override
	if s == "" {
		s = c.Run.Timeout
	}
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.New("timeout must not be negative")
	}
	return d, nil
}

func (c *config) ext() string {
	if c.Modules.Ext != "" {
		return c.Modules.Ext
	}
	return importers.DefaultExt
}
