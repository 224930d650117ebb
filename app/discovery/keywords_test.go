package discovery

import "testing"

func TestExtractUsernames(t *testing.T) {
	about := "Main channel @freelance_orders, backup @dev_jobs_board. " +
		"Contact @abc (too short: @abcd). Again: @freelance_orders"

	usernames := extractUsernames(about)

	expected := []string{"freelance_orders", "dev_jobs_board"}
	if len(usernames) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, usernames)
	}
	for i, want := range expected {
		if usernames[i] != want {
			t.Errorf("Username %d: expected %q, got %q", i, want, usernames[i])
		}
	}
}

func TestExtractUsernamesEmpty(t *testing.T) {
	if got := extractUsernames("no mentions here"); len(got) != 0 {
		t.Errorf("Expected no usernames, got %v", got)
	}
}

func TestDedupeKeepsOrder(t *testing.T) {
	got := dedupe([]string{"b", "a", "b", "c", "a"})

	expected := []string{"b", "a", "c"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i, want := range expected {
		if got[i] != want {
			t.Errorf("Item %d: expected %q, got %q", i, want, got[i])
		}
	}
}
