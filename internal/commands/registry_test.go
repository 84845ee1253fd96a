package commands

import "testing"

func TestRegistry_FindByNameAndAlias(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&ToggleCmd{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := r.Find("toggle"); !ok {
		t.Error("expected to find command by name")
	}
	if _, ok := r.Find("done"); !ok {
		t.Error("expected to find command by alias")
	}
	if _, ok := r.Find("missing"); ok {
		t.Error("expected lookup miss for unregistered name")
	}
}

func TestRegistry_RejectsDuplicateWithoutPartialInsert(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&RmCmd{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "rm" is already taken; the second registration must be rejected
	// without inserting any of its keys.
	if err := r.Register(&RmCmd{}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if len(r.All()) != 1 {
		t.Errorf("expected 1 registered command after rejection, got %d", len(r.All()))
	}
}

func TestRegistry_AllSortedAndUnique(t *testing.T) {
	r := NewRegistry()
	for _, cmd := range []Command{&ToggleCmd{}, &AddCmd{}, &ListCmd{}} {
		if err := r.Register(cmd); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all := r.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 commands (aliases deduplicated), got %d", len(all))
	}
	want := []string{"add", "list", "toggle"}
	for i, cmd := range all {
		if cmd.Name() != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], cmd.Name())
		}
	}
}
