// Package profile persists the tunnel profile: the configuration document
// together with the on-demand rules derived from it.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/net2share/meshtun/internal/autostart"
)

const (
	// ProtocolIdentifier names the tunnel provider that owns the profile.
	ProtocolIdentifier = "github.com/net2share/meshtun"
	// ServerAddress is shown by the host in place of a real endpoint.
	ServerAddress = "yggdrasil"
	// UnknownUsername is used when the document carries no public key.
	UnknownUsername = "(unknown public key)"

	providerConfigKey = "json"
)

// ErrNotFound is returned by Load when no profile has been saved yet.
var ErrNotFound = errors.New("profile not found")

// Profile is the persisted tunnel profile.
type Profile struct {
	OnDemandRules      []autostart.Rule           `json:"onDemandRules"`
	OnDemandEnabled    bool                       `json:"onDemandEnabled"`
	DisconnectOnSleep  bool                       `json:"disconnectOnSleep"`
	ProtocolIdentifier string                     `json:"protocolIdentifier"`
	ServerAddress      string                     `json:"serverAddress"`
	Username           string                     `json:"username"`
	ProviderConfig     map[string]json.RawMessage `json:"providerConfiguration"`
}

// Config returns the serialized configuration document stored in the profile.
func (p *Profile) Config() []byte {
	if p == nil || p.ProviderConfig == nil {
		return nil
	}
	return p.ProviderConfig[providerConfigKey]
}

// SetConfig stores a serialized configuration document. data must be valid
// JSON.
func (p *Profile) SetConfig(data []byte) {
	if p.ProviderConfig == nil {
		p.ProviderConfig = make(map[string]json.RawMessage)
	}
	p.ProviderConfig[providerConfigKey] = json.RawMessage(append([]byte(nil), data...))
}

// Store reads and writes a profile file.
type Store struct {
	path string
}

// NewStore returns a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the saved profile.
func (s *Store) Load(ctx context.Context) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &p, nil
}

// Save writes p atomically.
func (s *Store) Save(ctx context.Context, p *Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Exists reports whether a profile has been saved.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
