package repo

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateLinkCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateLinkCode()
		if err != nil {
			t.Fatalf("generateLinkCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q has length %d, want 6", code, len(code))
		}
		for _, c := range code {
			if !strings.ContainsRune(linkCodeCharset, c) {
				t.Fatalf("code %q contains %q outside charset", code, c)
			}
		}
		seen[code] = true
	}
	// 100 draws from a 36^6 space colliding into a handful of values would
	// indicate a broken generator.
	if len(seen) < 90 {
		t.Fatalf("only %d distinct codes out of 100", len(seen))
	}
}

func TestLinkCodeUsable(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		lc   LinkCode
		want bool
	}{
		{"fresh", LinkCode{ExpiresAt: now.Add(5 * time.Minute)}, true},
		{"used", LinkCode{Used: true, ExpiresAt: now.Add(5 * time.Minute)}, false},
		{"expired", LinkCode{ExpiresAt: now.Add(-time.Second)}, false},
		{"expires exactly now", LinkCode{ExpiresAt: now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LinkCodeUsable(tt.lc, now); got != tt.want {
				t.Errorf("LinkCodeUsable = %v, want %v", got, tt.want)
			}
		})
	}
}
