package xid

import (
	"strings"
	"testing"
)

func TestNewProducesValidIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New("cust")
		if !strings.HasPrefix(id, "cust-") {
			t.Fatalf("id %q missing prefix", id)
		}
		if !Valid(id) {
			t.Fatalf("New produced invalid id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestValidRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"cust",
		"cust-",
		"cust-abc-abcdefabcdefabcd",
		"cust-1700000000000000001",
		"cust-1700000000000000001-xyz",
		"cust-1700000000000000001-abcdefabcdefabc",
		"cust-1700000000000000001-ABCDEFABCDEFABCD",
		"CUST-1700000000000000001-abcdefabcdefabcd",
		"42-1700000000000000001-abcdefabcdefabcd",
	}
	for _, id := range bad {
		if Valid(id) {
			t.Fatalf("Valid(%q) = true, want false", id)
		}
	}
}

func TestValidAcceptsCanonical(t *testing.T) {
	good := []string{
		"cust-1700000000000000001-abcdefabcdefabcd",
		"item-1-0123456789abcdef",
		"audit-1756400000000000000-ffffffffffffffff",
	}
	for _, id := range good {
		if !Valid(id) {
			t.Fatalf("Valid(%q) = false, want true", id)
		}
	}
}
