package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestGenerateConfigCarriesPublicKey(t *testing.T) {
	y := NewYggdrasil(nil)
	data, err := y.GenerateConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	pk, _ := doc["PublicKey"].(string)
	if len(pk) != 64 {
		t.Errorf("PublicKey = %q, want 64 hex chars", pk)
	}
	priv, _ := doc["PrivateKey"].(string)
	if !strings.HasSuffix(priv, pk) {
		t.Errorf("PublicKey is not the tail of the private key")
	}
}

func TestStartRejectsBadConfig(t *testing.T) {
	y := NewYggdrasil(nil)
	if _, err := y.Start(context.Background(), []byte(`not json`)); err == nil {
		t.Error("expected error for undecodable config")
	}
	if _, err := y.Start(context.Background(), []byte(`{"PrivateKey":"00"}`)); err == nil {
		t.Error("expected error for short private key")
	}
}

func TestStartRejectsBadPeer(t *testing.T) {
	y := NewYggdrasil(nil)
	data, err := y.GenerateConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}

	for _, peer := range []string{"http://a.example:1", "tcp://%zz", "bogus", "tcp://no-port"} {
		doc["Peers"] = []string{peer}
		cfg, _ := json.Marshal(doc)
		h, err := y.Start(context.Background(), cfg)
		if err == nil {
			h.Stop()
			t.Errorf("Start with peer %q succeeded", peer)
			continue
		}
		if h != nil {
			t.Errorf("Start with peer %q returned a handle", peer)
		}
	}
}

func TestStartHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewYggdrasil(nil).Start(ctx, []byte(`{}`)); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestSlogLoggerBridge(t *testing.T) {
	var buf bytes.Buffer
	l := newSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace})))

	l.Infof("peer %s up", "tcp://x:1")
	l.Warnln("slow", "link")
	l.Traceln("tick")

	out := buf.String()
	for _, want := range []string{"peer tcp://x:1 up", "level=WARN", "slow link", "component=mesh", "tick"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
