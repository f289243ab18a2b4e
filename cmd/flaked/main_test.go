package main

import (
	"io"
	"log/slog"
	"testing"

	"flakeledger/config"
	"flakeledger/core"
	"flakeledger/crypto"
	"flakeledger/storage"
)

func TestBootstrapLedgerOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := storage.NewMemDB()
	node, err := core.NewNode(db, logger)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	var owner, holder [20]byte
	owner[19] = 1
	holder[19] = 2

	cfg := config.Default()
	if err := bootstrapLedger(node, cfg, logger); err == nil {
		t.Fatalf("missing genesis owner should fail on a fresh ledger")
	}

	cfg.Genesis.Owner = crypto.FormatAddress(owner)
	cfg.Genesis.Allocations = []config.Allocation{{Address: crypto.FormatAddress(holder), Amount: "42"}}
	if err := bootstrapLedger(node, cfg, logger); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	roles, err := node.FlakeRoles()
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if roles.Owner != owner || roles.Oracle != owner {
		t.Fatalf("unexpected roles %+v", roles)
	}

	cfg.Genesis.Allocations[0].Amount = "1000"
	if err := bootstrapLedger(node, cfg, logger); err != nil {
		t.Fatalf("second start: %v", err)
	}
	bal, _ := node.Balance(holder)
	if bal.Int64() != 42 {
		t.Fatalf("genesis applied twice, balance %s", bal)
	}
}
