package common

import (
	"errors"
	"testing"
)

func TestGuardRejectsNestedEntry(t *testing.T) {
	var g Guard
	if err := g.Enter(); err != nil {
		t.Fatalf("first enter: %v", err)
	}
	if !g.Active() {
		t.Fatalf("guard should be active")
	}
	if err := g.Enter(); !errors.Is(err, ErrReentrant) {
		t.Fatalf("expected ErrReentrant, got %v", err)
	}
	g.Exit()
	if g.Active() {
		t.Fatalf("guard should be released")
	}
	if err := g.Enter(); err != nil {
		t.Fatalf("enter after exit: %v", err)
	}
	g.Exit()
}

func TestNilGuard(t *testing.T) {
	var g *Guard
	if err := g.Enter(); err != nil {
		t.Fatalf("nil guard should admit: %v", err)
	}
	g.Exit()
	if g.Active() {
		t.Fatalf("nil guard is never active")
	}
}
