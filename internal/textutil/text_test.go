package textutil

import (
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		limit int
		want  string
	}{
		{"under limit", "short", 100, "short"},
		{"exact limit", "abcde", 5, "abcde"},
		{"zero limit", "anything", 0, "anything"},
		{"tiny limit", "abcdefgh", 4, "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.value, tt.limit); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.value, tt.limit, got, tt.want)
			}
		})
	}
}

func TestTruncateAppendsMarker(t *testing.T) {
	value := strings.Repeat("x", 200)
	got := Truncate(value, 64)
	if len(got) > 64 {
		t.Fatalf("result length %d exceeds limit", len(got))
	}
	if !strings.HasSuffix(got, "... (truncated)") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if !strings.HasPrefix(got, "xxxx") {
		t.Fatalf("expected original prefix preserved, got %q", got)
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	value := strings.Repeat("é", 100)
	got := Truncate(value, 50)
	if !strings.HasSuffix(got, "... (truncated)") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	for _, r := range got {
		if r == '�' {
			t.Fatalf("truncation split a rune: %q", got)
		}
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"single line", "hello", "hello"},
		{"multi line", "first\nsecond\nthird", "first"},
		{"leading blanks", "\n\n  padded  \nrest", "padded"},
		{"empty", "", ""},
		{"only whitespace", " \n\t\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstLine(tt.value); got != tt.want {
				t.Errorf("FirstLine(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"lowercases", "Rust-Expert", "rust-expert"},
		{"replaces spaces", "code review", "code_review"},
		{"strips edges", "__weird__", "weird"},
		{"empty", "", "unknown"},
		{"only symbols", "!!!", "unknown"},
		{"keeps digits", "agent2", "agent2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeToken(tt.value); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestTernary(t *testing.T) {
	if got := Ternary(true, "a", "b"); got != "a" {
		t.Errorf("Ternary(true) = %q, want a", got)
	}
	if got := Ternary(false, 1, 2); got != 2 {
		t.Errorf("Ternary(false) = %d, want 2", got)
	}
}
