package addrset

import "testing"

func TestDeltaOnlyReturnsNewAddresses(t *testing.T) {
	tr := NewFrom([]string{"a", "b"})

	delta := tr.Delta([]string{"a", "c", "b", "d"})
	if len(delta) != 2 || delta[0] != "c" || delta[1] != "d" {
		t.Fatalf("expected delta [c d], got %v", delta)
	}

	if tr.Len() != 4 {
		t.Fatalf("expected tracker to now hold 4 addresses, got %d", tr.Len())
	}

	// second call with the same addresses yields no delta
	delta2 := tr.Delta([]string{"a", "b", "c", "d"})
	if len(delta2) != 0 {
		t.Fatalf("expected no delta on already-known addresses, got %v", delta2)
	}
}

func TestAddReportsNewlyInserted(t *testing.T) {
	tr := New()
	if !tr.Add("x") {
		t.Fatal("expected first Add of x to report newly inserted")
	}
	if tr.Add("x") {
		t.Fatal("expected second Add of x to report already present")
	}
}
