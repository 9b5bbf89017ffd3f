package config

import _ "embed"

//go:embed shell.toml
var ShellToml []byte
