package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ImportYAML decodes a YAML document into a Store. YAML is a superset of JSON,
// so this also accepts hand-edited documents with comments.
func ImportYAML(data []byte) (*Store, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if raw == nil {
		return nil, &DecodeError{Err: fmt.Errorf("empty document")}
	}
	root, err := FromAny(raw)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	s := &Store{root: root}
	s.FixUp()
	return s, nil
}

// ExportYAML encodes the document as YAML.
func (s *Store) ExportYAML() ([]byte, error) {
	data, err := yaml.Marshal(s.root.ToAny())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// MigrateLegacy imports the YAML document at path left by an older install.
// It returns nil, nil when there is nothing to migrate. On success the old
// file is kept beside the original with a .backup suffix and removed.
func MigrateLegacy(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	s, err := ImportYAML(data)
	if err != nil {
		return nil, err
	}

	backupPath := path + ".backup"
	if err := os.WriteFile(backupPath, data, 0640); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, err
	}

	return s, nil
}
