// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/miniBamboo/statetrace/tracers"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	yaml "gopkg.in/yaml.v2"
)

type remoteConfig struct {
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api-key"`
	PageSize int           `yaml:"page-size"`
	Timeout  time.Duration `yaml:"timeout"`
}

// config holds settings shared by commands. Values come from the YAML file
// named by --config; flags given on the command line take precedence.
type config struct {
	DataDir    string       `yaml:"data-dir"`
	TraceLevel string       `yaml:"trace-level"`
	TraceDB    string       `yaml:"trace-db"`
	CacheSize  int          `yaml:"cache-size"`
	Remote     remoteConfig `yaml:"remote"`

	level tracers.TraceLevel
}

func loadConfigFile(path string) (*config, error) {
	var cfg config
	if path == "" {
		return &cfg, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "read config")
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, errors.WithMessage(err, "parse config "+path)
	}
	return &cfg, nil
}

// flagSource reads flag values from both the global and the command scope.
type flagSource interface {
	IsSet(name string) bool
	GlobalIsSet(name string) bool
	String(name string) string
	GlobalString(name string) string
	Int(name string) int
	GlobalInt(name string) int
	Duration(name string) time.Duration
}

func pickString(ctx flagSource, f cli.StringFlag, file string) string {
	switch {
	case ctx.IsSet(f.Name):
		return ctx.String(f.Name)
	case ctx.GlobalIsSet(f.Name):
		return ctx.GlobalString(f.Name)
	case file != "":
		return file
	}
	return f.Value
}

func pickInt(ctx flagSource, f cli.IntFlag, file int) int {
	switch {
	case ctx.IsSet(f.Name):
		return ctx.Int(f.Name)
	case ctx.GlobalIsSet(f.Name):
		return ctx.GlobalInt(f.Name)
	case file > 0:
		return file
	}
	return f.Value
}

func pickDuration(ctx flagSource, f cli.DurationFlag, file time.Duration) time.Duration {
	switch {
	case ctx.IsSet(f.Name):
		return ctx.Duration(f.Name)
	case file > 0:
		return file
	}
	return f.Value
}

// resolveConfig merges the config file with the flags of ctx.
func resolveConfig(ctx flagSource) (*config, error) {
	cfg, err := loadConfigFile(pickString(ctx, configFlag, ""))
	if err != nil {
		return nil, err
	}
	cfg.DataDir = pickString(ctx, dataDirFlag, cfg.DataDir)
	cfg.TraceLevel = pickString(ctx, traceLevelFlag, cfg.TraceLevel)
	cfg.TraceDB = pickString(ctx, traceDBFlag, cfg.TraceDB)
	cfg.CacheSize = pickInt(ctx, cacheSizeFlag, cfg.CacheSize)
	cfg.Remote.URL = pickString(ctx, remoteFlag, cfg.Remote.URL)
	cfg.Remote.APIKey = pickString(ctx, apiKeyFlag, cfg.Remote.APIKey)
	cfg.Remote.PageSize = pickInt(ctx, pageSizeFlag, cfg.Remote.PageSize)
	cfg.Remote.Timeout = pickDuration(ctx, timeoutFlag, cfg.Remote.Timeout)

	if cfg.level, err = tracers.ParseTraceLevel(cfg.TraceLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultDataDir() string {
	if home := homeDir(); home != "" {
		return filepath.Join(home, ".statetrace")
	}
	return ".statetrace"
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
