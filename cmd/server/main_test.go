package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"secretpass/config"
	"secretpass/internal/store"
)

func TestInitMemoryStore(t *testing.T) {
	cfg := config.Default()
	cfg.Secrets.IDFormat = "uuid"

	st, err := initStore(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initStore failed: %v", err)
	}
	defer st.Close()

	if _, ok := st.(*store.MemoryStore); !ok {
		t.Fatalf("expected *store.MemoryStore, got %T", st)
	}

	secret, err := st.Create(context.Background(), "x", 0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(secret.ID) != 36 {
		t.Errorf("expected uuid id, got %q", secret.ID)
	}
	if secret.TTL != cfg.Secrets.DefaultTTL {
		t.Errorf("ttl: got %v, want %v", secret.TTL, cfg.Secrets.DefaultTTL)
	}
}

func TestInitStoreRejectsUnknownIDFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Secrets.IDFormat = "sequential"
	if _, err := initStore(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	if f := cmd.Flags().Lookup("config"); f == nil || f.Shorthand != "c" {
		t.Fatalf("config flag missing or wrong shorthand: %+v", f)
	}
}
