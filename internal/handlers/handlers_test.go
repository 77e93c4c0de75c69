package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/net2share/meshtun/internal/actions"
	"github.com/net2share/meshtun/internal/autostart"
	"github.com/net2share/meshtun/internal/config"
	"github.com/net2share/meshtun/internal/session"
)

type recordOutput struct {
	lines []string
}

func (r *recordOutput) add(s string) { r.lines = append(r.lines, s) }

func (r *recordOutput) Print(msg string)         { r.add(msg) }
func (r *recordOutput) Println(a ...interface{}) { r.add(fmt.Sprint(a...)) }
func (r *recordOutput) Info(msg string)          { r.add(msg) }
func (r *recordOutput) Success(msg string)       { r.add(msg) }
func (r *recordOutput) Warning(msg string)       { r.add(msg) }
func (r *recordOutput) Error(msg string)         { r.add(msg) }
func (r *recordOutput) Status(msg string)        { r.add(msg) }
func (r *recordOutput) Box(title string, lines []string) {
	r.add(title)
	r.lines = append(r.lines, lines...)
}
func (r *recordOutput) KV(key, value string) string { return key + ": " + value }
func (r *recordOutput) Table(headers []string, rows [][]string) {
	r.add(strings.Join(headers, " "))
	for _, row := range rows {
		r.add(strings.Join(row, " "))
	}
}
func (r *recordOutput) ShowInfo(actions.InfoConfig) error { return nil }
func (r *recordOutput) BeginProgress(string)              {}
func (r *recordOutput) EndProgress()                      {}

func (r *recordOutput) contains(s string) bool {
	for _, l := range r.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

type fakeIdentity struct{}

func (fakeIdentity) GenerateConfig(context.Context) ([]byte, error) {
	return []byte(`{"PrivateKey":"priv","PublicKey":"pub","Peers":[]}`), nil
}

func newTestContext(t *testing.T) (*actions.Context, *recordOutput) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	sess, err := session.Open(context.Background(), session.Options{
		ProfilePath: filepath.Join(dir, "profile.json"),
		Identity:    fakeIdentity{},
		Platform:    &autostart.Desktop,
	})
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	out := &recordOutput{}
	return &actions.Context{
		Ctx:     context.Background(),
		Session: sess,
		Values:  make(map[string]interface{}),
		Output:  out,
	}, out
}

func TestPeerHandlers(t *testing.T) {
	ctx, out := newTestContext(t)

	ctx.Set("uri", "tls://a.example:443")
	if err := HandlePeerAdd(ctx); err != nil {
		t.Fatalf("HandlePeerAdd: %v", err)
	}
	err := HandlePeerAdd(ctx)
	var ae *actions.ActionError
	if !errors.As(err, &ae) || !errors.Is(err, actions.ErrPeerExists) {
		t.Fatalf("duplicate add err = %v", err)
	}

	ctx.Set("uri", "udp://a.example:1")
	if err := HandlePeerAdd(ctx); err == nil {
		t.Fatal("invalid scheme accepted")
	}

	ctx.Set("uri", "tcp://b.example:1")
	if err := HandlePeerAdd(ctx); err != nil {
		t.Fatal(err)
	}

	if err := HandlePeerList(ctx); err != nil {
		t.Fatal(err)
	}
	if !out.contains("tcp://b.example:1") {
		t.Fatalf("list output missing peer: %v", out.lines)
	}

	ctx.Set("index", 7)
	if err := HandlePeerRemoveAt(ctx); !errors.Is(err, config.ErrIndexOutOfRange) {
		t.Fatalf("remove-at err = %v", err)
	}
	ctx.Set("index", 0)
	if err := HandlePeerRemoveAt(ctx); err != nil {
		t.Fatal(err)
	}

	ctx.Args = []string{"tcp://missing:1"}
	if err := HandlePeerRemove(ctx); !errors.Is(err, actions.ErrPeerNotFound) {
		t.Fatalf("remove missing err = %v", err)
	}
	ctx.Args = []string{"tcp://b.example:1"}
	if err := HandlePeerRemove(ctx); err != nil {
		t.Fatal(err)
	}
	if got := ctx.Session.Peers(); len(got) != 0 {
		t.Fatalf("peers = %v, want none", got)
	}
}

func TestAutoStartSetOnlyGivenFlags(t *testing.T) {
	ctx, _ := newTestContext(t)

	if err := HandleAutoStartSet(ctx); err == nil {
		t.Fatal("no flags should be an error")
	}

	ctx.Set("wifi", true)
	if err := HandleAutoStartSet(ctx); err != nil {
		t.Fatal(err)
	}
	flags := ctx.Session.AutoStart()
	if !flags[config.AutoStartWiFi] || flags[config.AutoStartEthernet] {
		t.Fatalf("flags = %v", flags)
	}

	ctx.Values = map[string]interface{}{"ethernet": true}
	if err := HandleAutoStartSet(ctx); err != nil {
		t.Fatal(err)
	}
	if flags := ctx.Session.AutoStart(); !flags[config.AutoStartWiFi] {
		t.Fatal("absent flag was changed")
	}
	if !ctx.Session.Profile().OnDemandEnabled {
		t.Fatal("on-demand not enabled")
	}
}

func TestMulticastKeepsAbsentFlag(t *testing.T) {
	ctx, _ := newTestContext(t)

	if err := HandleConfigMulticast(ctx); err == nil {
		t.Fatal("no flags should be an error")
	}

	ctx.Set("beacon", false)
	if err := HandleConfigMulticast(ctx); err != nil {
		t.Fatal(err)
	}

	v, _ := ctx.Session.Document().Get(config.KeyMulticastInterfaces)
	items, _ := v.AsSequence()
	if len(items) == 0 {
		t.Fatal("no multicast records")
	}
	beacon, _ := items[0].Lookup("Beacon")
	listen, _ := items[0].Lookup("Listen")
	if b, _ := beacon.AsBool(); b {
		t.Fatal("Beacon not cleared")
	}
	if l, _ := listen.AsBool(); !l {
		t.Fatal("Listen changed although not given")
	}
}

func TestConfigExportImport(t *testing.T) {
	ctx, out := newTestContext(t)
	path := filepath.Join(t.TempDir(), "node.yaml")

	ctx.Set("format", session.FormatYAML)
	ctx.Set("out", path)
	if err := HandleConfigExport(ctx); err != nil {
		t.Fatalf("export: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("export mode = %v, want 0600", info.Mode().Perm())
	}

	ctx.Set("out", "-")
	ctx.Set("format", session.FormatJSON)
	if err := HandleConfigExport(ctx); err != nil {
		t.Fatal(err)
	}
	if !out.contains(`"PublicKey"`) {
		t.Fatal("stdout export missing document")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte(`{"Peers":["ftp://x:1"]}`), 0600)
	ctx.Args = []string{bad}
	if err := HandleConfigImport(ctx); err == nil {
		t.Fatal("invalid document imported")
	}

	ctx.Args = []string{path}
	if err := HandleConfigImport(ctx); err != nil {
		t.Fatalf("import: %v", err)
	}
	if ctx.Session.Document().PublicKey() != "pub" {
		t.Fatal("import lost public key")
	}
}

func TestConfigNodeNameAndShow(t *testing.T) {
	ctx, out := newTestContext(t)

	ctx.Set("name", "quiet-otter")
	if err := HandleConfigNodeName(ctx); err != nil {
		t.Fatal(err)
	}
	if err := HandleConfigShow(ctx); err != nil {
		t.Fatal(err)
	}
	if !out.contains("Node name: quiet-otter") || !out.contains("Public key: pub") {
		t.Fatalf("show output = %v", out.lines)
	}
}

func TestFormatTable(t *testing.T) {
	header, body, width := formatTable(
		[]string{"PEER", "STATE"},
		[][]string{{"tls://a:1", "up"}, {"tcp://bb:22", "down"}},
	)
	if header != "PEER         STATE" {
		t.Fatalf("header = %q", header)
	}
	if body[0] != "tls://a:1    up" {
		t.Fatalf("row = %q", body[0])
	}
	if width != 13+7 {
		t.Fatalf("width = %d", width)
	}
}
