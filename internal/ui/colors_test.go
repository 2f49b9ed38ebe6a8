package ui

import (
	"strings"
	"testing"
)

func TestPalette(t *testing.T) {
	p := NewPalette("#000000", "#000000", "#000000", "#000000", "#000000")

	t.Run("Header", func(t *testing.T) {
		got := p.Header("Stream Resolved")
		lines := strings.Split(got, "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d: %q", len(lines), got)
		}
		if !strings.Contains(lines[1], "Stream Resolved") {
			t.Errorf("expected title on the middle line, got %q", lines[1])
		}
		if !strings.Contains(lines[0], strings.Repeat("═", 39)) {
			t.Errorf("expected a rule, got %q", lines[0])
		}
	})

	t.Run("status lines", func(t *testing.T) {
		tests := []struct {
			name string
			got  string
			want string
		}{
			{"OK", p.OK("%d resolved", 3), "✓ 3 resolved"},
			{"Fail", p.Fail("no lyrics"), "✗ no lyrics"},
			{"Warn", p.Warn("offline"), "offline"},
			{"Help", p.Help("run %s", "setup"), "run setup"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if !strings.Contains(tt.got, tt.want) {
					t.Errorf("expected %q in %q", tt.want, tt.got)
				}
			})
		}
	})

	t.Run("KeyValue", func(t *testing.T) {
		got := p.KeyValue([][2]string{{"url", "https://cdn/a"}, {"source", "LIVE"}})
		lines := strings.Split(got, "\n")
		if len(lines) != 2 {
			t.Fatalf("expected 2 lines, got %q", got)
		}
		if !strings.Contains(lines[0], "https://cdn/a") || !strings.Contains(lines[1], "LIVE") {
			t.Errorf("unexpected rows %q", lines)
		}
		if strings.Index(lines[0], ":") != strings.Index(lines[1], ":") {
			t.Errorf("expected aligned keys, got %q", lines)
		}
	})
}
