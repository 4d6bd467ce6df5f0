// Package config loads typed configuration structs from environment
// variables and YAML files.
//
// Load parses a struct's `env` field tags, loading a .env file from the
// working directory on first use when one exists. Each unique configuration
// type is parsed once per process and cached, so independent components can
// call Load for the same type without re-reading the environment.
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// MustLoad panics on failure, for configuration the process cannot start
// without.
//
// LoadFile decodes a YAML file into the struct via its `yaml` tags. File
// loading is not cached; each call re-reads the file.
package config
