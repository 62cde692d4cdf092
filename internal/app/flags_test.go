package app

import (
	"flag"
	"io"
	"testing"
)

func TestConfigBind(t *testing.T) {
	cfg := NewConfig()
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.Bind(fs)
	args := []string{"-scale", "2", "-run", "-set", "grid_size=64", "-set", "gravity = 3.7", "-set", "grid_size=32"}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Scale != 2 || !cfg.Run || cfg.TPS != 60 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	m := cfg.Set.Map()
	if m["grid_size"] != "32" || m["gravity"] != "3.7" {
		t.Fatalf("unexpected overrides %v", m)
	}
}

func TestKVListRejectsBareKey(t *testing.T) {
	var l KVList
	if err := l.Set("grid_size"); err == nil {
		t.Fatal("expected error for value without '='")
	}
	if len(l) != 0 {
		t.Fatalf("rejected value should not be stored: %v", l)
	}
}
