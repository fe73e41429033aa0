package utils

import (
	"strings"
	"testing"
)

func TestSecureRandomID(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{name: "default length", length: IDLength, want: IDLength},
		{name: "short", length: 3, want: 3},
		{name: "long", length: 64, want: 64},
		{name: "too short falls back", length: 1, want: IDLength},
		{name: "too long falls back", length: 500, want: IDLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := SecureRandomID(tt.length)
			if err != nil {
				t.Fatalf("SecureRandomID() error = %v", err)
			}
			if len(id) != tt.want {
				t.Errorf("SecureRandomID() length = %d, want %d", len(id), tt.want)
			}
			for _, c := range id {
				if !strings.ContainsRune(idCharset, c) {
					t.Errorf("SecureRandomID() contains invalid character %q", c)
				}
			}
		})
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("NewID() produced duplicate %s", id)
		}
		seen[id] = true
	}
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc", true},
		{"V1StGXR8_Z", true},
		{"with-dash1", true},
		{"ab", false},
		{"has space", false},
		{"bad/slash", false},
		{"", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		if got := IsValidID(tt.id); got != tt.want {
			t.Errorf("IsValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
