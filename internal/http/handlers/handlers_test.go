package handlers

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	from, to, err := parseWindow("2026-05-02T09:00:00Z", "2026-05-02T12:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if to.Sub(from) != 3*time.Hour {
		t.Fatalf("unexpected window: %v -> %v", from, to)
	}
}

func TestParseWindowRequiresBothBounds(t *testing.T) {
	if _, _, err := parseWindow("", "2026-05-02T12:00:00Z"); err == nil {
		t.Fatal("expected error for missing from")
	}
	if _, _, err := parseWindow("2026-05-02T09:00:00Z", ""); err == nil {
		t.Fatal("expected error for missing to")
	}
}

func TestParseWindowRejectsInvertedWindow(t *testing.T) {
	if _, _, err := parseWindow("2026-05-02T12:00:00Z", "2026-05-02T09:00:00Z"); err == nil {
		t.Fatal("expected error for inverted window")
	}
	if _, _, err := parseWindow("2026-05-02T09:00:00Z", "2026-05-02T09:00:00Z"); err == nil {
		t.Fatal("expected error for empty window")
	}
}

func TestParseWindowRejectsBadFormat(t *testing.T) {
	if _, _, err := parseWindow("yesterday", "tomorrow"); err == nil {
		t.Fatal("expected error for non-RFC3339 input")
	}
}
