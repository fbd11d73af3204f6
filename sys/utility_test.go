package sys

import (
	"strings"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"zero", 0, "∞"},
		{"seconds", 42 * time.Second, "42s"},
		{"minutes", 3*time.Minute + 5*time.Second, "3m 5s"},
		{"hours", 2*time.Hour + 14*time.Minute, "2h 14m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncateCenter(t *testing.T) {
	if got := TruncateCenter("short", 10); got != "short" {
		t.Errorf("short text changed: %q", got)
	}
	got := TruncateCenter(strings.Repeat("x", 50)+"END", 20)
	if len([]rune(got)) > 20 {
		t.Errorf("result too long: %d runes", len([]rune(got)))
	}
	if !strings.Contains(got, "...") {
		t.Errorf("expected ellipsis in %q", got)
	}
	if !strings.HasSuffix(got, "END") {
		t.Errorf("end of text lost: %q", got)
	}
}

func TestTruncateWithPreserve(t *testing.T) {
	got := TruncateWithPreserve(strings.Repeat("t", 200), 100, "[YTM] ", " - Artist")
	if len([]rune(got)) > 100 {
		t.Errorf("result too long: %d runes", len([]rune(got)))
	}
	if !strings.HasPrefix(got, "[YTM] ") {
		t.Errorf("prefix lost: %q", got)
	}
	if !strings.HasSuffix(got, " - Artist") {
		t.Errorf("suffix lost: %q", got)
	}
}
