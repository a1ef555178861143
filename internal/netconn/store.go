// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package netconn keeps the hub on a network: it persists the last
// credentials, starts an access point or joins a network, and restarts the
// process when joining keeps failing.
package netconn

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Mode selects how the hub gets on a network.
type Mode int

const (
	// ModeAP runs the hub's own access point.
	ModeAP Mode = 0
	// ModeStation joins an existing network.
	ModeStation Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeAP:
		return "ap"
	case ModeStation:
		return "station"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ErrNoRecord is returned by Store.Load when nothing has been saved yet.
var ErrNoRecord = errors.New("no stored network record")

// Record is the persisted connection choice.
type Record struct {
	Mode     Mode
	SSID     string
	Password string
}

// Store keeps a Record in a three line text file: mode digit, SSID, password.
type Store struct {
	path string
}

// NewStore returns a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load reads the stored record.
func (s *Store) Load() (Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNoRecord
		}
		return Record{}, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() && len(lines) < 3 {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(lines) == 0 {
		return Record{}, ErrNoRecord
	}

	var rec Record
	switch strings.TrimSpace(lines[0]) {
	case "0":
		rec.Mode = ModeAP
	case "1":
		rec.Mode = ModeStation
	default:
		return Record{}, fmt.Errorf("%s: invalid mode line %q", s.path, lines[0])
	}
	if len(lines) > 1 {
		rec.SSID = lines[1]
	}
	if len(lines) > 2 {
		rec.Password = lines[2]
	}
	return rec, nil
}

// Save replaces the stored record.
func (s *Store) Save(rec Record) error {
	if rec.Mode != ModeAP && rec.Mode != ModeStation {
		return fmt.Errorf("invalid mode %d", rec.Mode)
	}
	if strings.ContainsAny(rec.SSID, "\r\n") || strings.ContainsAny(rec.Password, "\r\n") {
		return errors.New("ssid and password must be single line")
	}
	data := fmt.Sprintf("%d\n%s\n%s\n", rec.Mode, rec.SSID, rec.Password)
	if err := os.WriteFile(s.path, []byte(data), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
