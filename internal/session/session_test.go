package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/net2share/meshtun/internal/autostart"
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/profile"
)

type fakeIdentity struct {
	n int
}

func (f *fakeIdentity) GenerateConfig(context.Context) ([]byte, error) {
	f.n++
	return []byte(fmt.Sprintf(`{"PrivateKey":"priv%d","PublicKey":"pub%d","Peers":[]}`, f.n, f.n)), nil
}

func open(t *testing.T, dir string, id *fakeIdentity) *Session {
	t.Helper()
	s, err := Open(context.Background(), Options{
		ProfilePath: filepath.Join(dir, "profile.json"),
		LegacyPath:  filepath.Join(dir, "legacy.yaml"),
		Identity:    id,
		Platform:    &autostart.Desktop,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	id := &fakeIdentity{}
	s := open(t, dir, id)

	p := s.Profile()
	if p.Username != "pub1" {
		t.Fatalf("Username = %q, want pub1", p.Username)
	}
	if p.ProtocolIdentifier != profile.ProtocolIdentifier || p.ServerAddress != profile.ServerAddress {
		t.Fatalf("profile identity fields = %+v", p)
	}
	if p.OnDemandEnabled || p.DisconnectOnSleep {
		t.Fatal("fresh profile should not enable on-demand")
	}
	if len(p.OnDemandRules) != 1 || p.OnDemandRules[0].Action != autostart.Disconnect {
		t.Fatalf("rules = %+v", p.OnDemandRules)
	}

	// Reopening keeps the same identity.
	s2 := open(t, dir, id)
	if s2.Document().PublicKey() != "pub1" || id.n != 1 {
		t.Fatalf("reopen regenerated identity (n=%d)", id.n)
	}
}

func TestOpenMigratesLegacy(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "legacy.yaml")
	os.WriteFile(legacy, []byte("PublicKey: old\nPeers:\n  - tcp://a.example:1\n"), 0640)

	id := &fakeIdentity{}
	s := open(t, dir, id)
	if id.n != 0 {
		t.Fatal("identity generated although legacy document existed")
	}
	if got := s.Peers(); len(got) != 1 || got[0] != "tcp://a.example:1" {
		t.Fatalf("Peers = %v", got)
	}
	if _, err := os.Stat(legacy); !os.IsNotExist(err) {
		t.Fatal("legacy file not removed")
	}
}

func TestOpenReplacesUndecodableDocument(t *testing.T) {
	dir := t.TempDir()
	store := profile.NewStore(filepath.Join(dir, "profile.json"))
	p := &profile.Profile{}
	p.SetConfig([]byte(`["not","a","mapping"]`))
	if err := store.Save(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	id := &fakeIdentity{}
	s := open(t, dir, id)
	if id.n != 1 || s.Document().PublicKey() != "pub1" {
		t.Fatal("undecodable document not regenerated")
	}
}

func TestPeers(t *testing.T) {
	s := open(t, t.TempDir(), &fakeIdentity{})
	ctx := context.Background()

	if err := s.AddPeer(ctx, "tls://a.example:443"); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	if err := s.AddPeer(ctx, " tls://a.example:443 "); !errors.Is(err, ErrPeerExists) {
		t.Fatalf("duplicate AddPeer err = %v", err)
	}
	if err := s.AddPeer(ctx, "http://nope:1"); err == nil {
		t.Fatal("invalid scheme accepted")
	}
	if err := s.AddPeer(ctx, "tcp://b.example:1"); err != nil {
		t.Fatal(err)
	}

	if err := s.RemovePeer(ctx, "tcp://missing:1"); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("RemovePeer missing err = %v", err)
	}
	if err := s.RemovePeerAt(ctx, 5); !errors.Is(err, config.ErrIndexOutOfRange) {
		t.Fatalf("RemovePeerAt err = %v", err)
	}
	if got := s.Peers(); len(got) != 2 {
		t.Fatalf("failed removals changed peers: %v", got)
	}
	if err := s.RemovePeerAt(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.RemovePeer(ctx, "tcp://b.example:1"); err != nil {
		t.Fatal(err)
	}
	if got := s.Peers(); len(got) != 0 {
		t.Fatalf("Peers = %v, want none", got)
	}
}

func TestSetAutoStartDerivesRules(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir, &fakeIdentity{})
	ctx := context.Background()

	if err := s.SetAutoStart(ctx, "wifi", true); err != nil {
		t.Fatalf("SetAutoStart: %v", err)
	}
	if err := s.SetAutoStart(ctx, config.AutoStartEthernet, true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAutoStart(ctx, "bluetooth", true); !errors.Is(err, ErrUnknownAutoStart) {
		t.Fatalf("unknown flag err = %v", err)
	}

	p := s.Profile()
	want := []autostart.Rule{
		{Action: autostart.Connect, Interface: autostart.Ethernet},
		{Action: autostart.Connect, Interface: autostart.WiFi},
		{Action: autostart.Disconnect, Interface: autostart.Any},
	}
	if len(p.OnDemandRules) != len(want) {
		t.Fatalf("rules = %+v", p.OnDemandRules)
	}
	for i := range want {
		if p.OnDemandRules[i] != want[i] {
			t.Fatalf("rule %d = %+v, want %+v", i, p.OnDemandRules[i], want[i])
		}
	}
	if !p.OnDemandEnabled || !p.DisconnectOnSleep {
		t.Fatal("on-demand should be enabled")
	}

	// The saved profile on disk matches.
	saved, err := profile.NewStore(s.ProfilePath()).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !saved.OnDemandEnabled || len(saved.OnDemandRules) != 3 {
		t.Fatalf("saved profile = %+v", saved)
	}
	if flags := s.AutoStart(); !flags[config.AutoStartWiFi] || flags[config.AutoStartAny] {
		t.Fatalf("AutoStart = %v", flags)
	}
}

func TestSetOnNonMappingSection(t *testing.T) {
	s := open(t, t.TempDir(), &fakeIdentity{})
	ctx := context.Background()
	if err := s.Import(ctx, []byte(`{"PublicKey":"k","AutoStart":"on","NodeInfo":[1]}`)); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if err := s.SetAutoStart(ctx, config.AutoStartWiFi, true); !errors.Is(err, ErrNotMapping) {
		t.Errorf("SetAutoStart err = %v, want ErrNotMapping", err)
	}
	if err := s.SetNodeName(ctx, "fox"); !errors.Is(err, ErrNotMapping) {
		t.Errorf("SetNodeName err = %v, want ErrNotMapping", err)
	}
	if v, _ := s.Document().Get(config.KeyAutoStart); v.Kind() != config.KindString {
		t.Errorf("AutoStart changed to %v", v)
	}
}

func TestSetMulticastAndNodeName(t *testing.T) {
	s := open(t, t.TempDir(), &fakeIdentity{})
	ctx := context.Background()

	if err := s.SetMulticast(ctx, false, true); err != nil {
		t.Fatal(err)
	}
	v, _ := s.Document().Get(config.KeyMulticastInterfaces)
	items, _ := v.AsSequence()
	if len(items) != 1 {
		t.Fatalf("multicast records = %d", len(items))
	}
	beacon, _ := items[0].Lookup("Beacon")
	listen, _ := items[0].Lookup("Listen")
	if b, _ := beacon.AsBool(); b {
		t.Fatal("Beacon not cleared")
	}
	if l, _ := listen.AsBool(); !l {
		t.Fatal("Listen not set")
	}

	if err := s.SetNodeName(ctx, "garden-fox"); err != nil {
		t.Fatal(err)
	}
	if s.NodeName() != "garden-fox" {
		t.Fatalf("NodeName = %q", s.NodeName())
	}
	if err := s.SetNodeName(ctx, ""); err != nil || s.NodeName() == "" {
		t.Fatalf("empty name should pick one, got %q, %v", s.NodeName(), err)
	}
}

func TestImportExport(t *testing.T) {
	s := open(t, t.TempDir(), &fakeIdentity{})
	ctx := context.Background()

	data, name, err := s.Export(FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if name != "yggdrasil-pub1.conf.json" {
		t.Fatalf("export name = %q", name)
	}

	yml, yname, err := s.Export(FormatYAML)
	if err != nil || !strings.HasSuffix(yname, ".yaml") {
		t.Fatalf("yaml export = %q, %v", yname, err)
	}
	if _, _, err := s.Export("toml"); err == nil {
		t.Fatal("unknown format accepted")
	}

	if err := s.Import(ctx, []byte(`{"PublicKey":"other","Peers":["tcp://c:1"]}`)); err != nil {
		t.Fatalf("Import JSON: %v", err)
	}
	if s.Document().PublicKey() != "other" {
		t.Fatal("import did not replace document")
	}
	if err := s.Import(ctx, []byte(`{"Peers":["ftp://c:1"]}`)); err == nil {
		t.Fatal("invalid peers imported")
	}
	if s.Document().PublicKey() != "other" {
		t.Fatal("failed import changed document")
	}

	if err := s.Import(ctx, yml); err != nil {
		t.Fatalf("Import YAML: %v", err)
	}
	if s.Document().PublicKey() != "pub1" {
		t.Fatal("yaml round trip lost public key")
	}
	if err := s.Import(ctx, data); err != nil {
		t.Fatalf("Import exported JSON: %v", err)
	}
}

func TestRegenerateKeepsPeers(t *testing.T) {
	s := open(t, t.TempDir(), &fakeIdentity{})
	ctx := context.Background()
	s.AddPeer(ctx, "tcp://a.example:1")
	s.SetAutoStart(ctx, config.AutoStartAny, true)

	if err := s.Regenerate(ctx); err != nil {
		t.Fatal(err)
	}
	doc := s.Document()
	if doc.PublicKey() != "pub2" {
		t.Fatalf("PublicKey = %q, want pub2", doc.PublicKey())
	}
	if got := doc.StringList(config.KeyPeers); len(got) != 1 {
		t.Fatalf("peers lost: %v", got)
	}
	if on, _ := doc.BoolIn(config.KeyAutoStart, config.AutoStartAny); !on {
		t.Fatal("autostart lost")
	}
	if s.Profile().Username != "pub2" {
		t.Fatal("profile username not updated")
	}
}
