// Package config loads semlaunch settings from defaults, an optional YAML
// file, a .env file and SEMLAUNCH_* environment variables.
package config
