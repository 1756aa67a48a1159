// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package sessionfile persists a connection's session material (auth key,
// server salt, session id, DC endpoint) and its updates bookkeeping as two
// JSON files, each rewritten atomically: write to a temp file in the same
// directory, fsync, then rename over the target.
package sessionfile

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/telecraft/mtproto/internal/config"
	"github.com/telecraft/mtproto/internal/mterr"
)

// CurrentVersion is written into every session.json this package produces.
// LegacyVersion documents the one format this package has ever refused: a
// migration tool reading a file with no "version" field at all (the Python
// client's session layout, predating this field) would need to synthesize
// LegacyVersion before handing the data to a migrator; this package itself
// does not migrate, it only refuses.
const (
	CurrentVersion = 1
	LegacyVersion  = 0
)

const (
	authKeySize    = 256
	serverSaltSize = 8
	sessionIDSize  = 8
)

// Session is the durable snapshot of a connection's session material.
type Session struct {
	Version    int    `json:"version"`
	DCID       int32  `json:"dc_id"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Framing    string `json:"framing"`
	AuthKey    string `json:"auth_key"`    // base64
	ServerSalt string `json:"server_salt"` // hex
	SessionID  string `json:"session_id"`  // hex
}

// NewSession builds a Session record ready to be saved, from the raw binary
// material the Encrypted Sender works with.
func NewSession(dcID int32, host string, port int, framing string, authKey []byte, serverSalt, sessionID [8]byte) Session {
	return Session{
		Version:    CurrentVersion,
		DCID:       dcID,
		Host:       host,
		Port:       port,
		Framing:    framing,
		AuthKey:    base64.StdEncoding.EncodeToString(authKey),
		ServerSalt: hex.EncodeToString(serverSalt[:]),
		SessionID:  hex.EncodeToString(sessionID[:]),
	}
}

// AuthKeyBytes decodes the stored auth key.
func (s Session) AuthKeyBytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s.AuthKey)
	if err != nil {
		return nil, &mterr.SessionFileError{Reason: "auth_key is not valid base64: " + err.Error()}
	}
	if len(b) != authKeySize {
		return nil, &mterr.SessionFileError{Reason: "auth_key must decode to 256 bytes"}
	}
	return b, nil
}

// ServerSaltBytes decodes the stored server salt.
func (s Session) ServerSaltBytes() ([8]byte, error) {
	return decodeFixed8(s.ServerSalt, "server_salt")
}

// SessionIDBytes decodes the stored session id.
func (s Session) SessionIDBytes() ([8]byte, error) {
	return decodeFixed8(s.SessionID, "session_id")
}

func decodeFixed8(h, field string) ([8]byte, error) {
	var out [8]byte
	b, err := hex.DecodeString(h)
	if err != nil {
		return out, &mterr.SessionFileError{Reason: field + " is not valid hex: " + err.Error()}
	}
	if len(b) != serverSaltSize {
		return out, &mterr.SessionFileError{Reason: field + " must decode to 8 bytes"}
	}
	copy(out[:], b)
	return out, nil
}

// validate checks sizes and the framing tag before a Session is handed back
// to a caller. Version mismatches are checked separately by LoadSession so
// the caller gets a distinct, actionable error.
func (s Session) validate(path string) error {
	if s.Framing != config.FramingAbridged && s.Framing != config.FramingIntermediate {
		return &mterr.SessionFileError{Path: path, Reason: "unrecognized framing tag " + s.Framing}
	}
	if _, err := s.AuthKeyBytes(); err != nil {
		return wrapPath(path, err)
	}
	if _, err := s.ServerSaltBytes(); err != nil {
		return wrapPath(path, err)
	}
	if _, err := s.SessionIDBytes(); err != nil {
		return wrapPath(path, err)
	}
	return nil
}

func wrapPath(path string, err error) error {
	if sfe, ok := err.(*mterr.SessionFileError); ok {
		sfe.Path = path
		return sfe
	}
	return err
}

// SaveSession atomically rewrites path with s.
func SaveSession(path string, s Session) error {
	s.Version = CurrentVersion
	return atomicWriteJSON(path, s)
}

// LoadSession reads and validates path. A version mismatch or malformed
// field refuses to load (the caller should fall back to a clean handshake)
// rather than return a partially-trusted Session.
func LoadSession(path string) (Session, error) {
	var s Session
	if err := loadJSON(path, &s); err != nil {
		return Session{}, err
	}
	if s.Version != CurrentVersion {
		return Session{}, &mterr.SessionFileError{
			Path:   path,
			Reason: "version mismatch: found " + strconv.Itoa(s.Version) + ", want " + strconv.Itoa(CurrentVersion),
		}
	}
	if err := s.validate(path); err != nil {
		return Session{}, err
	}
	return s, nil
}

// atomicWriteJSON writes a temp file in the same directory as path
// (guaranteeing the subsequent rename is on the same filesystem), fsyncs
// it, then renames it over path.
func atomicWriteJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return &mterr.SessionFileError{Path: path, Reason: "creating directory: " + err.Error()}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &mterr.SessionFileError{Path: path, Reason: "creating temp file: " + err.Error()}
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &mterr.SessionFileError{Path: path, Reason: "encoding: " + err.Error()}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &mterr.SessionFileError{Path: path, Reason: "fsync: " + err.Error()}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &mterr.SessionFileError{Path: path, Reason: "closing temp file: " + err.Error()}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &mterr.SessionFileError{Path: path, Reason: "renaming into place: " + err.Error()}
	}
	return nil
}

func loadJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return &mterr.SessionFileError{Path: path, Reason: "opening: " + err.Error()}
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return &mterr.SessionFileError{Path: path, Reason: "decoding: " + err.Error()}
	}
	return nil
}
