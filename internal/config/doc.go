// Package config loads and validates application configuration.
//
// Configuration is YAML with ${VAR} environment expansion, so secrets such
// as the database password come from the environment. Loading is split
// into Load (parse), LoadWithDefaults (fill optional fields), and
// LoadAndValidate (reject bad values).
package config
