package api

import "testing"

func TestNewCUIDFormat(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newCUID()
		if len(id) != 25 {
			t.Fatalf("len(%q) = %d, want 25", id, len(id))
		}
		if id[0] != 'c' {
			t.Fatalf("id %q does not start with c", id)
		}
		for _, r := range id[1:] {
			if (r < '0' || r > '9') && (r < 'a' || r > 'z') {
				t.Fatalf("id %q contains invalid rune %q", id, r)
			}
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
