package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeID != "node-1" || cfg.Codec.Format != "json" || cfg.Codec.Mode != "subscribe" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Directory.NodeTTL() != 5*time.Minute {
		t.Fatalf("node ttl = %v", cfg.Directory.NodeTTL())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshgraph.yaml")
	yaml := `
node_id: trainer
codec:
  format: CBOR
  compress: true
store:
  object_ttl_ms: 1500
peers:
  - id: worker-1
    addr: pipe:w1
    labels: {zone: a}
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MESHGRAPH_CODEC_MODE", "acquire")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeID != "trainer" || cfg.Codec.Format != "cbor" || !cfg.Codec.Compress {
		t.Fatalf("file values not applied: %+v", cfg.Codec)
	}
	if cfg.Codec.Mode != "acquire" {
		t.Fatalf("env override not applied: %q", cfg.Codec.Mode)
	}
	if cfg.Store.ObjectTTL() != 1500*time.Millisecond {
		t.Fatalf("object ttl = %v", cfg.Store.ObjectTTL())
	}
	if len(cfg.Peers) != 1 || cfg.Peers[0].ID != "worker-1" || cfg.Peers[0].Labels["zone"] != "a" {
		t.Fatalf("peers = %+v", cfg.Peers)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"format": "codec: {format: xml}\n",
		"mode":   "codec: {mode: borrow}\n",
		"level":  "log: {level: loud}\n",
		"peer":   "peers: [{addr: x}]\n",
	} {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
