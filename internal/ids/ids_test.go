package ids

import "testing"

func TestNewIsUniqueAndSortable(t *testing.T) {
	a := New()
	b := New()
	if a == b {
		t.Fatalf("expected distinct identifiers, got %s twice", a)
	}
	if !(a < b) {
		t.Fatalf("expected monotonic ordering: %s then %s", a, b)
	}
	if !Valid(a) || !Valid(b) {
		t.Fatalf("generated identifiers failed validation: %s %s", a, b)
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not-an-id", "0000"} {
		if Valid(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}
