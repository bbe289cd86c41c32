// Package config loads toxwatch configuration files.
//
// Files are decoded with [github.com/goccy/go-yaml], validated against the
// JSON schema reflected from the configuration types, then defaulted and
// checked by the type itself. Errors point at the offending line of the
// source file.
package config
