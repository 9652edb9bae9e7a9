package buildrt

import (
	"errors"
	"testing"
)

func TestBuildErrorMessage(t *testing.T) {
	tests := []struct {
		missing []string
		want    string
	}{
		{[]string{"x"}, "piecemeal: cannot build Point: missing required parameter 'x'"},
		{[]string{"x", "y"}, "piecemeal: cannot build Point: missing required parameters 'x', 'y'"},
	}
	for _, tt := range tests {
		err := &BuildError{Type: "Point", Missing: tt.missing}
		if got := err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestUnsetCollectsInOrder(t *testing.T) {
	var u Unset
	u.Check("name", false)
	u.Check("age", true)
	u.Check("email", false)

	err := u.Err("User")
	if !errors.Is(err, ErrUnsetRequired) {
		t.Fatalf("expected ErrUnsetRequired, got %v", err)
	}
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BuildError, got %T", err)
	}
	if be.Type != "User" || len(be.Missing) != 2 || be.Missing[0] != "name" || be.Missing[1] != "email" {
		t.Fatalf("unexpected error contents: %+v", be)
	}

	var empty Unset
	empty.Check("x", true)
	if err := empty.Err("Point"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestSlot(t *testing.T) {
	var s Slot[int]
	calls := 0
	def := func() int { calls++; return 7 }

	if s.IsSet() || s.Or(def) != 7 || calls != 1 {
		t.Fatalf("unset slot must use default")
	}
	s.Set(3)
	s.Set(5)
	if v, ok := s.Get(); !ok || v != 5 {
		t.Fatalf("Get() = %d, %v", v, ok)
	}
	if s.Or(def) != 5 || calls != 1 {
		t.Fatalf("set slot must not evaluate default")
	}
}

func TestMissing(t *testing.T) {
	err := Missing("Point", []string{"x", "y"}, false, true)
	var be *BuildError
	if !errors.As(err, &be) || len(be.Missing) != 1 || be.Missing[0] != "x" {
		t.Fatalf("Missing = %v, want x only", err)
	}
	if err := Missing("Point", []string{"x"}, true); err != nil {
		t.Fatalf("Missing = %v, want nil", err)
	}
}
