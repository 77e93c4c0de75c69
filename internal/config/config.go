// Package config provides the mesh configuration document and where it lives
// on disk.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Well-known document keys.
const (
	KeyPeers               = "Peers"
	KeyListen              = "Listen"
	KeyAdminListen         = "AdminListen"
	KeyIfName              = "IfName"
	KeyMulticastInterfaces = "MulticastInterfaces"
	KeyAutoStart           = "AutoStart"
	KeyNodeInfo            = "NodeInfo"
	KeyPublicKey           = "PublicKey"
	KeyPrivateKey          = "PrivateKey"
	KeySigningPublicKey    = "SigningPublicKey"
	KeyEncryptionPublicKey = "EncryptionPublicKey"
)

// AutoStart flag names inside the AutoStart section.
const (
	AutoStartAny      = "Any"
	AutoStartWiFi     = "WiFi"
	AutoStartEthernet = "Ethernet"
	AutoStartMobile   = "Mobile"
)

var (
	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("config decode failed")
	// ErrIndexOutOfRange is returned by RemoveAt for an index past the end.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// DecodeError reports bytes that are not a JSON object.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %v", ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// IdentityProvider produces a fresh engine configuration with a new identity.
type IdentityProvider interface {
	GenerateConfig(ctx context.Context) ([]byte, error)
}

// Store holds one configuration document. It is not safe for concurrent use;
// callers that share a Store serialize access themselves.
type Store struct {
	root Value
}

// Load decodes a serialized document and applies FixUp.
func Load(data []byte) (*Store, error) {
	var root Value
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if root.Kind() != KindMapping {
		return nil, &DecodeError{Err: fmt.Errorf("top-level value is %s, want mapping", root.Kind())}
	}
	s := &Store{root: root}
	s.FixUp()
	return s, nil
}

// LoadFile reads and decodes a document from path.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Load(data)
}

// GenerateDefault asks the engine for a fresh configuration, names the node
// after this machine and applies FixUp.
func GenerateDefault(ctx context.Context, p IdentityProvider) (*Store, error) {
	data, err := p.GenerateConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate config: %w", err)
	}
	s, err := Load(data)
	if err != nil {
		return nil, err
	}
	s.SetIn(KeyNodeInfo, "name", String(DefaultNodeName()))
	return s, nil
}

// Root returns a copy of the whole document.
func (s *Store) Root() Value {
	return s.root.Clone()
}

// Get returns the top-level value for key. Absent keys report false, which is
// distinct from a present null.
func (s *Store) Get(key string) (Value, bool) {
	return s.root.Lookup(key)
}

// GetIn returns key inside the mapping stored at section.
func (s *Store) GetIn(section, key string) (Value, bool) {
	sec, ok := s.root.Lookup(section)
	if !ok {
		return Value{}, false
	}
	return sec.Lookup(key)
}

// Set replaces or inserts a top-level key.
func (s *Store) Set(key string, v Value) {
	s.root.put(key, v)
}

// SetIn sets key inside section. It does nothing and returns false when the
// section is missing or is not a mapping.
func (s *Store) SetIn(section, key string, v Value) bool {
	sec, ok := s.root.Lookup(section)
	if !ok || sec.Kind() != KindMapping {
		return false
	}
	s.root.put(section, sec.With(key, v))
	return true
}

// Delete removes a top-level key.
func (s *Store) Delete(key string) {
	s.root.delete(key)
}

// Add appends v to the sequence at key. It does nothing when the key is
// missing or not a sequence.
func (s *Store) Add(key string, v Value) bool {
	seq, ok := s.sequence(key)
	if !ok {
		return false
	}
	s.root.put(key, Value{kind: KindSequence, seq: append(seq, v)})
	return true
}

// Remove deletes the first element equal to v from the sequence at key.
func (s *Store) Remove(key string, v Value) bool {
	seq, ok := s.sequence(key)
	if !ok {
		return false
	}
	for i, item := range seq {
		if item.Equal(v) {
			s.root.put(key, Value{kind: KindSequence, seq: append(seq[:i], seq[i+1:]...)})
			return true
		}
	}
	return false
}

// RemoveAt deletes the element at index from the sequence at key. A missing
// key or non-sequence is ignored; an index outside the sequence leaves the
// document untouched and returns ErrIndexOutOfRange.
func (s *Store) RemoveAt(key string, index int) error {
	seq, ok := s.sequence(key)
	if !ok {
		return nil
	}
	if index < 0 || index >= len(seq) {
		return fmt.Errorf("%w: %s[%d] (len %d)", ErrIndexOutOfRange, key, index, len(seq))
	}
	s.root.put(key, Value{kind: KindSequence, seq: append(seq[:index], seq[index+1:]...)})
	return nil
}

func (s *Store) sequence(key string) ([]Value, bool) {
	v, ok := s.root.Lookup(key)
	if !ok {
		return nil, false
	}
	return v.AsSequence()
}

// String returns the string stored at key.
func (s *Store) String(key string) (string, bool) {
	v, ok := s.root.Lookup(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// StringList returns the strings stored in the sequence at key.
func (s *Store) StringList(key string) []string {
	v, ok := s.root.Lookup(key)
	if !ok {
		return nil
	}
	out, _ := v.AsStrings()
	return out
}

// BoolIn returns the boolean stored at section.key.
func (s *Store) BoolIn(section, key string) (bool, bool) {
	v, ok := s.GetIn(section, key)
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// PublicKey returns the node public key, falling back to the legacy signing
// key. It returns "" when neither is present.
func (s *Store) PublicKey() string {
	if pk, ok := s.String(KeyPublicKey); ok && pk != "" {
		return pk
	}
	if pk, ok := s.String(KeySigningPublicKey); ok && pk != "" {
		return pk
	}
	return ""
}

// Serialize encodes the document as indented JSON. The output decodes back
// into an equal document.
func (s *Store) Serialize() ([]byte, error) {
	raw, err := s.root.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveToPath applies FixUp and writes the document to path.
func (s *Store) SaveToPath(path string) error {
	s.FixUp()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := s.Serialize()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ExportFileName is the conventional name for an exported document.
func (s *Store) ExportFileName() string {
	pk := s.PublicKey()
	if pk == "" {
		pk = "unknown"
	}
	return fmt.Sprintf("yggdrasil-%s.conf.json", pk)
}
