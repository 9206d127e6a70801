package fileid

import (
	"strings"
	"testing"
)

func TestFileDocID(t *testing.T) {
	id1 := FileDocID("/knowledge/menu.txt")
	id2 := FileDocID("/knowledge/menu.txt")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, filePrefix) {
		t.Errorf("ID should have prefix %q: got %q", filePrefix, id1)
	}
	if FileDocID("/knowledge/hours.txt") == id1 {
		t.Error("different paths should give different IDs")
	}
}

func TestFileDocID_normalized(t *testing.T) {
	id1 := FileDocID("/knowledge/menus")
	for _, p := range []string{"/knowledge/menus/", "/knowledge/./menus", "/knowledge/x/../menus"} {
		if got := FileDocID(p); got != id1 {
			t.Errorf("FileDocID(%q) = %q, want %q", p, got, id1)
		}
	}
}

func TestFixtureDocIDs(t *testing.T) {
	if got := StoreDocID("s1"); got != "store:s1" {
		t.Errorf("StoreDocID = %q", got)
	}
	if got := PromotionDocID("p1"); got != "promo:p1" {
		t.Errorf("PromotionDocID = %q", got)
	}
	if StoreDocID("x") == PromotionDocID("x") {
		t.Error("store and promotion IDs must not collide")
	}
}

func TestSource(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{FileDocID("/a.txt"), "file"},
		{StoreDocID("s1"), "store"},
		{PromotionDocID("p1"), "promo"},
		{"random", ""},
	}
	for _, tt := range tests {
		if got := Source(tt.id); got != tt.want {
			t.Errorf("Source(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
