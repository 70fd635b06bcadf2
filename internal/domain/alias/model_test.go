package alias

import "testing"

func TestNewTable_CanonicalLookup(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]Rule{
		{Canonical: "parissaintgermain", Equivalents: []string{"psg", "Paris SG"}},
	}, nil)
	if err != nil {
		t.Fatalf("NewTable error: %v", err)
	}

	canonical, ok := table.Canonical("parissg")
	if !ok || canonical != "parissaintgermain" {
		t.Fatalf("expected parissg -> parissaintgermain, got=%q ok=%v", canonical, ok)
	}

	// Canonical forms resolve to themselves so substitution is idempotent.
	canonical, ok = table.Canonical("parissaintgermain")
	if !ok || canonical != "parissaintgermain" {
		t.Fatalf("expected canonical self-lookup, got=%q ok=%v", canonical, ok)
	}

	if _, ok := table.Canonical("arsenal"); ok {
		t.Fatalf("expected miss for unknown form")
	}
}

func TestNewTable_ConflictingFormsRejected(t *testing.T) {
	t.Parallel()

	_, err := NewTable([]Rule{
		{Canonical: "internazionale", Equivalents: []string{"inter"}},
		{Canonical: "intermiami", Equivalents: []string{"inter"}},
	}, nil)
	if err == nil {
		t.Fatalf("expected conflict error for duplicated equivalent form")
	}
}

func TestNewTable_Pins(t *testing.T) {
	t.Parallel()

	table, err := NewTable(nil, []Pin{{SourceID: "sl-204", TargetID: "cd-133616"}})
	if err != nil {
		t.Fatalf("NewTable error: %v", err)
	}

	target, ok := table.PinFor("sl-204")
	if !ok || target != "cd-133616" {
		t.Fatalf("expected pin sl-204 -> cd-133616, got=%q ok=%v", target, ok)
	}

	if _, err := NewTable(nil, []Pin{{SourceID: "sl-1", TargetID: ""}}); err == nil {
		t.Fatalf("expected error for empty pin target")
	}

	if _, err := NewTable(nil, []Pin{
		{SourceID: "sl-1", TargetID: "cd-2"},
		{SourceID: "sl-1", TargetID: "cd-3"},
	}); err == nil {
		t.Fatalf("expected error for contradictory pins")
	}
}
