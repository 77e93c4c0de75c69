// Package session owns the controller's configuration document and keeps
// the persisted profile in step with it.
//
// Every mutation goes through a Session method, which fixes the document
// up, derives the on-demand rules and saves the profile before returning.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/net2share/meshtun/internal/autostart"
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/profile"
)

var (
	ErrPeerExists       = errors.New("peer already configured")
	ErrPeerNotFound     = errors.New("peer not configured")
	ErrUnknownAutoStart = errors.New("unknown autostart flag")
	ErrNotMapping       = errors.New("configuration section is not a mapping")
)

// Options configures Open.
type Options struct {
	// ProfilePath is where the profile is persisted.
	ProfilePath string
	// LegacyPath is a YAML document from an older install, migrated on
	// first open. Empty disables migration.
	LegacyPath string
	// Identity generates fresh configurations.
	Identity config.IdentityProvider
	// Platform selects which on-demand rules apply. Nil means
	// autostart.Current().
	Platform *autostart.Platform
	Logger   *slog.Logger
}

// Session is the single owner of the configuration document.
type Session struct {
	store    *profile.Store
	identity config.IdentityProvider
	platform autostart.Platform
	logger   *slog.Logger

	mu      sync.Mutex
	doc     *config.Store
	profile *profile.Profile
}

// Open loads the saved profile. Without one it migrates the legacy document
// or generates a new identity. A profile whose document no longer decodes
// is replaced by a freshly generated one.
func Open(ctx context.Context, opts Options) (*Session, error) {
	s := &Session{
		store:    profile.NewStore(opts.ProfilePath),
		identity: opts.Identity,
		platform: autostart.Current(),
		logger:   opts.Logger,
	}
	if opts.Platform != nil {
		s.platform = *opts.Platform
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("component", "session")

	doc, err := s.load(ctx, opts.LegacyPath)
	if err != nil {
		return nil, err
	}
	s.doc = doc

	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) load(ctx context.Context, legacyPath string) (*config.Store, error) {
	p, err := s.store.Load(ctx)
	switch {
	case err == nil:
		doc, err := config.Load(p.Config())
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, config.ErrDecode) {
			return nil, err
		}
		s.logger.Warn("saved configuration is unreadable, generating a new one", "err", err)
		return s.generate(ctx)

	case errors.Is(err, profile.ErrNotFound):
		if legacyPath != "" {
			doc, err := config.MigrateLegacy(legacyPath)
			if err != nil {
				s.logger.Warn("legacy configuration migration failed", "path", legacyPath, "err", err)
			} else if doc != nil {
				s.logger.Info("migrated legacy configuration", "path", legacyPath)
				return doc, nil
			}
		}
		return s.generate(ctx)

	default:
		return nil, err
	}
}

func (s *Session) generate(ctx context.Context) (*config.Store, error) {
	if s.identity == nil {
		return nil, fmt.Errorf("no identity provider to generate a configuration")
	}
	return config.GenerateDefault(ctx, s.identity)
}

// saveLocked fixes the document up, derives the rules and persists the
// profile.
func (s *Session) saveLocked(ctx context.Context) error {
	s.doc.FixUp()

	data, err := s.doc.Serialize()
	if err != nil {
		return err
	}

	rules, enabled := autostart.Rules(s.doc, s.platform)
	username := s.doc.PublicKey()
	if username == "" {
		username = profile.UnknownUsername
	}

	p := &profile.Profile{
		OnDemandRules:      rules,
		OnDemandEnabled:    enabled,
		DisconnectOnSleep:  enabled,
		ProtocolIdentifier: profile.ProtocolIdentifier,
		ServerAddress:      profile.ServerAddress,
		Username:           username,
	}
	p.SetConfig(data)

	if err := s.store.Save(ctx, p); err != nil {
		return err
	}
	s.profile = p
	s.logger.Debug("profile saved", "rules", len(rules), "on_demand", enabled)
	return nil
}

// update applies fn to the document and saves. If fn or the save fails the
// document is restored.
func (s *Session) update(ctx context.Context, fn func(doc *config.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.doc.Serialize()
	if err != nil {
		return err
	}
	if err := fn(s.doc); err != nil {
		s.restore(before)
		return err
	}
	if err := s.saveLocked(ctx); err != nil {
		s.restore(before)
		return err
	}
	return nil
}

func (s *Session) restore(data []byte) {
	if doc, err := config.Load(data); err == nil {
		s.doc = doc
	}
}

// Save persists the current document.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

// Document returns a copy of the configuration document.
func (s *Session) Document() *config.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := s.doc.Serialize()
	doc, _ := config.Load(data)
	return doc
}

// Config returns the serialized document as persisted in the profile.
func (s *Session) Config() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Serialize()
}

// Profile returns a copy of the last saved profile.
func (s *Session) Profile() profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *s.profile
	p.OnDemandRules = append([]autostart.Rule(nil), p.OnDemandRules...)
	return p
}

// ProfilePath returns where the profile is saved.
func (s *Session) ProfilePath() string {
	return s.store.Path()
}

// Peers returns the configured peer URIs.
func (s *Session) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.StringList(config.KeyPeers)
}

// AddPeer validates uri and appends it to the peer list.
func (s *Session) AddPeer(ctx context.Context, uri string) error {
	uri = strings.TrimSpace(uri)
	if err := config.ValidatePeerURI(uri); err != nil {
		return err
	}
	return s.update(ctx, func(doc *config.Store) error {
		for _, p := range doc.StringList(config.KeyPeers) {
			if p == uri {
				return fmt.Errorf("%w: %s", ErrPeerExists, uri)
			}
		}
		doc.Add(config.KeyPeers, config.String(uri))
		return nil
	})
}

// RemovePeer removes uri from the peer list.
func (s *Session) RemovePeer(ctx context.Context, uri string) error {
	uri = strings.TrimSpace(uri)
	return s.update(ctx, func(doc *config.Store) error {
		if !doc.Remove(config.KeyPeers, config.String(uri)) {
			return fmt.Errorf("%w: %s", ErrPeerNotFound, uri)
		}
		return nil
	})
}

// RemovePeerAt removes the peer at index.
func (s *Session) RemovePeerAt(ctx context.Context, index int) error {
	return s.update(ctx, func(doc *config.Store) error {
		return doc.RemoveAt(config.KeyPeers, index)
	})
}

// AutoStart returns the AutoStart flags by name.
func (s *Session) AutoStart() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, 4)
	for _, flag := range AutoStartFlags {
		out[flag], _ = s.doc.BoolIn(config.KeyAutoStart, flag)
	}
	return out
}

// AutoStartFlags lists the flags SetAutoStart accepts.
var AutoStartFlags = []string{
	config.AutoStartAny,
	config.AutoStartWiFi,
	config.AutoStartEthernet,
	config.AutoStartMobile,
}

// SetAutoStart sets one AutoStart flag and rederives the on-demand rules.
func (s *Session) SetAutoStart(ctx context.Context, flag string, on bool) error {
	known := false
	for _, f := range AutoStartFlags {
		if strings.EqualFold(f, flag) {
			flag, known = f, true
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownAutoStart, flag)
	}
	return s.update(ctx, func(doc *config.Store) error {
		if !doc.SetIn(config.KeyAutoStart, flag, config.Bool(on)) {
			return fmt.Errorf("%w: %s", ErrNotMapping, config.KeyAutoStart)
		}
		return nil
	})
}

// SetMulticast sets Beacon and Listen on every multicast interface record.
func (s *Session) SetMulticast(ctx context.Context, beacon, listen bool) error {
	return s.update(ctx, func(doc *config.Store) error {
		v, _ := doc.Get(config.KeyMulticastInterfaces)
		items, _ := v.AsSequence()
		for i, item := range items {
			items[i] = item.With("Beacon", config.Bool(beacon)).With("Listen", config.Bool(listen))
		}
		doc.Set(config.KeyMulticastInterfaces, config.Sequence(items...))
		return nil
	})
}

// NodeName returns the configured node name.
func (s *Session) NodeName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.NodeName()
}

// SetNodeName sets NodeInfo.name. An empty name picks a random one.
func (s *Session) SetNodeName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = config.GenerateName()
	}
	return s.update(ctx, func(doc *config.Store) error {
		if !doc.SetIn(config.KeyNodeInfo, "name", config.String(name)) {
			return fmt.Errorf("%w: %s", ErrNotMapping, config.KeyNodeInfo)
		}
		return nil
	})
}

// Import replaces the document with data, which may be JSON or YAML.
func (s *Session) Import(ctx context.Context, data []byte) error {
	doc, err := config.Load(data)
	if err != nil {
		if doc, err = config.ImportYAML(data); err != nil {
			return err
		}
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.doc
	s.doc = doc
	if err := s.saveLocked(ctx); err != nil {
		s.doc = prev
		return err
	}
	return nil
}

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Export serializes the document as JSON or YAML and returns the
// conventional file name alongside.
func (s *Session) Export(format string) (data []byte, name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = s.doc.ExportFileName()
	switch strings.ToLower(format) {
	case "", FormatJSON:
		data, err = s.doc.Serialize()
	case FormatYAML:
		data, err = s.doc.ExportYAML()
		name = strings.TrimSuffix(name, ".json") + ".yaml"
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	return data, name, err
}

// Regenerate replaces the document with a new identity. Peers and
// AutoStart settings are carried over.
func (s *Session) Regenerate(ctx context.Context) error {
	fresh, err := s.generate(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{config.KeyPeers, config.KeyAutoStart, config.KeyMulticastInterfaces} {
		if v, ok := s.doc.Get(key); ok {
			fresh.Set(key, v)
		}
	}
	prev := s.doc
	s.doc = fresh
	if err := s.saveLocked(ctx); err != nil {
		s.doc = prev
		return err
	}
	return nil
}
