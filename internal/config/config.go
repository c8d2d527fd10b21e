// Package config loads a node's JSON configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"
)

const (
	DefaultInterval = 3 * time.Second
	DefaultWarmUp   = 5 * time.Second
)

// Error is returned for any configuration problem. Configuration errors
// are fatal at startup.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Duration is a time.Duration written as a string such as "3s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	*d = Duration(v)
	return nil
}

// Config describes one networked node.
type Config struct {
	ID       string            `json:"id"`
	Listen   string            `json:"listen"`
	Peers    map[string]string `json:"peers"` // id -> host:port
	Interval Duration          `json:"interval,omitempty"`
	WarmUp   *Duration         `json:"warm_up,omitempty"` // nil means DefaultWarmUp; "0s" disables
	Journal  string            `json:"journal,omitempty"` // bbolt file; empty keeps the log in memory
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, &Error{Err: err}
	}
	if cfg.Interval == 0 {
		cfg.Interval = Duration(DefaultInterval)
	}
	if cfg.WarmUp == nil {
		w := Duration(DefaultWarmUp)
		cfg.WarmUp = &w
	}
	if cfg.Peers == nil {
		cfg.Peers = map[string]string{}
	}
	if err := cfg.validate(); err != nil {
		return nil, &Error{Err: err}
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Listen == "" {
		return errors.New("listen is required")
	}
	for id, addr := range c.Peers {
		switch {
		case id == "":
			return errors.New("peer with empty id")
		case id == c.ID:
			return fmt.Errorf("peer %q is this node", id)
		case addr == "":
			return fmt.Errorf("peer %q has no address", id)
		}
	}
	return nil
}

// PeerIDs returns the configured peer ids in sorted order.
func (c *Config) PeerIDs() []string {
	return slices.Sorted(maps.Keys(c.Peers))
}

func (c *Config) IntervalDuration() time.Duration { return time.Duration(c.Interval) }

func (c *Config) WarmUpDuration() time.Duration {
	if c.WarmUp == nil {
		return DefaultWarmUp
	}
	return time.Duration(*c.WarmUp)
}
