package main

import (
	"flag"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	"github.com/je4/mediashell/config"
)

var configPath = flag.String("config", "", "path to config file")
var debug = flag.Bool("debug", false, "debug mode")
var serviceURL = flag.String("url", "", "url of the media service")
var localAddr = flag.String("addr", "", "listen address of the control bridge")
var noKiosk = flag.Bool("no-kiosk", false, "disable kiosk")
var purgeCache = flag.Bool("purge-cache", false, "purge the browser cache on startup")
var settingsDir = flag.String("settings", "", "directory for the persisted display state")

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type RegionConfig struct {
	Endpoint string `toml:"endpoint"`
}

type DomainConfig struct {
	Service []string `toml:"service"`
	Auth    []string `toml:"auth"`
}

type ShellConfig struct {
	Name        string                 `toml:"name"`
	LocalAddr   string                 `toml:"localaddr"`
	ServiceURL  string                 `toml:"serviceurl"`
	Kiosk       bool                   `toml:"kiosk"`
	Debug       bool                   `toml:"debug"`
	PurgeCache  bool                   `toml:"purgecache"`
	DRMProbe    bool                   `toml:"drmprobe"`
	NTPServer   string                 `toml:"ntp"`
	SettingsDir string                 `toml:"settingsdir"`
	Browser     map[string]interface{} `toml:"browser"`
	Region      RegionConfig           `toml:"region"`
	Domains     DomainConfig           `toml:"domains"`
	Log         LogConfig              `toml:"log"`
}

func loadConfig() (*ShellConfig, error) {
	flag.Parse()
	cfg := &ShellConfig{}
	// fill the default values
	if _, err := toml.Decode(string(config.ShellToml), cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load default config")
	}
	if *configPath != "" {
		// enhance it with the external file
		if _, err := toml.DecodeFile(*configPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to load config from %s", *configPath)
		}
	}
	flag.VisitAll(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			if *debug {
				cfg.Debug = true
			}
		case "url":
			if *serviceURL != "" {
				cfg.ServiceURL = *serviceURL
			}
		case "addr":
			if *localAddr != "" {
				cfg.LocalAddr = *localAddr
			}
		case "no-kiosk":
			if *noKiosk {
				cfg.Kiosk = false
			}
		case "purge-cache":
			if *purgeCache {
				cfg.PurgeCache = true
			}
		case "settings":
			if *settingsDir != "" {
				cfg.SettingsDir = *settingsDir
			}
		}
	})
	return cfg, nil
}
