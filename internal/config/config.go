// Package config adapts the teacher's listener-oriented TOML configuration
// (config.go/loader.go) into the flat `mail.<protocol>.<key>` option model
// spec §6 names for this client-side core.
package config

import (
	"strconv"
	"time"
)

// defaultPorts gives the well-known port for each protocol name, per
// spec §6's "defaults per protocol: 110/995/143/993/25/465/119".
var defaultPorts = map[string]int{
	"pop3":  110,
	"pop3s": 995,
	"imap":  143,
	"imaps": 993,
	"smtp":  25,
	"smtps": 465,
	"nntp":  119,
}

// ProtocolConfig is a read-only mapping from recognised option keys to
// values, shared by reference across all connections created from a single
// Session (spec §3: "ProtocolConfig ... shared by reference"). Unknown
// keys are ignored rather than rejected, per spec §6.
type ProtocolConfig struct {
	protocol string
	values   map[string]string
}

// NewProtocolConfig wraps a flat key→value map for one protocol. Keys are
// the bare option name (e.g. "host", "starttls.enable"), not prefixed with
// "mail.<protocol>." — that prefix is stripped by the loader.
func NewProtocolConfig(protocol string, values map[string]string) ProtocolConfig {
	if values == nil {
		values = map[string]string{}
	}
	return ProtocolConfig{protocol: protocol, values: values}
}

// String returns the raw string value for key, or def if absent.
func (c ProtocolConfig) String(key, def string) string {
	if v, ok := c.values[key]; ok {
		return v
	}
	return def
}

// Bool parses key as a boolean, or returns def if absent or unparsable.
func (c ProtocolConfig) Bool(key string, def bool) bool {
	v, ok := c.values[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int parses key as an integer, or returns def if absent or unparsable.
func (c ProtocolConfig) Int(key string, def int) int {
	v, ok := c.values[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Duration parses key as a bare integer count of milliseconds (the unit of
// spec §6's `timeout` key) or, failing that, as a Go duration (e.g. "30s"),
// and returns def if absent or unparsable.
func (c ProtocolConfig) Duration(key string, def time.Duration) time.Duration {
	v, ok := c.values[key]
	if !ok {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Port returns the configured port, falling back to the protocol's
// well-known default.
func (c ProtocolConfig) Port() int {
	return c.Int("port", defaultPorts[c.protocol])
}

// Host returns the configured host, defaulting to "localhost".
func (c ProtocolConfig) Host() string {
	return c.String("host", "localhost")
}

// Protocol returns the protocol name this config was built for (e.g.
// "pop3"), used to rebuild a ProtocolConfig after merging overrides.
func (c ProtocolConfig) Protocol() string {
	return c.protocol
}
