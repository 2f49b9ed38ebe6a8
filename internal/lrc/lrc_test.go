package lrc

import (
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Run("synced with metadata", func(t *testing.T) {
		text := "[ar:The Weeknd]\n[ti:Blinding Lights]\n[00:12.50]I've been tryna call\n\n[00:15.00]I've been on my own\n"
		got := Parse(text)

		if !got.Synced {
			t.Fatal("expected synced lyrics")
		}
		if got.Meta["ar"] != "The Weeknd" || got.Meta["ti"] != "Blinding Lights" {
			t.Errorf("unexpected meta %v", got.Meta)
		}
		if len(got.Lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(got.Lines))
		}
		if got.Lines[0].Time != 12500*time.Millisecond || got.Lines[0].Text != "I've been tryna call" {
			t.Errorf("unexpected first line %+v", got.Lines[0])
		}
	})

	t.Run("multiple tags per line are sorted", func(t *testing.T) {
		got := Parse("[00:30.00][00:10.00]chorus\n[00:20.00]verse")
		want := []Line{
			{10 * time.Second, "chorus"},
			{20 * time.Second, "verse"},
			{30 * time.Second, "chorus"},
		}
		if len(got.Lines) != len(want) {
			t.Fatalf("expected %d lines, got %d", len(want), len(got.Lines))
		}
		for i := range want {
			if got.Lines[i] != want[i] {
				t.Errorf("line %d = %+v, want %+v", i, got.Lines[i], want[i])
			}
		}
	})

	t.Run("fraction precision", func(t *testing.T) {
		tests := []struct {
			in   string
			want time.Duration
		}{
			{"[01:02]x", 62 * time.Second},
			{"[01:02.5]x", 62*time.Second + 500*time.Millisecond},
			{"[01:02.05]x", 62*time.Second + 50*time.Millisecond},
			{"[01:02.005]x", 62*time.Second + 5*time.Millisecond},
			{"[01:02:50]x", 62*time.Second + 500*time.Millisecond},
		}
		for _, tt := range tests {
			t.Run(tt.in, func(t *testing.T) {
				got := Parse(tt.in)
				if len(got.Lines) != 1 || got.Lines[0].Time != tt.want {
					t.Errorf("Parse(%q) = %+v, want time %v", tt.in, got.Lines, tt.want)
				}
			})
		}
	})

	t.Run("offset shifts earlier", func(t *testing.T) {
		got := Parse("[offset:500]\n[00:01.00]a\n[00:00.20]b")
		if got.Lines[0].Time != 0 || got.Lines[1].Time != 500*time.Millisecond {
			t.Errorf("unexpected times %+v", got.Lines)
		}
	})

	t.Run("plain text", func(t *testing.T) {
		got := Parse("first line\r\nsecond line")
		if got.Synced {
			t.Error("plain text should not be synced")
		}
		if len(got.Lines) != 2 || got.Lines[1].Text != "second line" || got.Lines[1].Time != 0 {
			t.Errorf("unexpected lines %+v", got.Lines)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := Parse(""); len(got.Lines) != 0 || got.Synced {
			t.Errorf("expected empty lyrics, got %+v", got)
		}
	})
}

func TestFormat(t *testing.T) {
	l := Lyrics{Synced: true, Lines: []Line{
		{Time: 1500 * time.Millisecond, Text: "hello"},
		{Time: 61*time.Second + 230*time.Millisecond, Text: "world"},
	}}
	want := "[00:01.50]hello\n[01:01.23]world\n"
	if got := Format(l); got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	if got := Parse(Format(l)); len(got.Lines) != 2 || got.Lines[1] != l.Lines[1] {
		t.Errorf("round trip mismatch: %+v", got.Lines)
	}

	plain := Lyrics{Lines: []Line{{Text: "a"}, {Text: "b"}}}
	if got := plain.String(); strings.Contains(got, "[") {
		t.Errorf("plain lyrics should have no tags, got %q", got)
	}
}

func TestAt(t *testing.T) {
	l := Parse("[00:10.00]a\n[00:20.00]b\n[00:30.00]c")
	tests := []struct {
		pos  time.Duration
		want int
	}{
		{5 * time.Second, -1},
		{10 * time.Second, 0},
		{25 * time.Second, 1},
		{time.Hour, 2},
	}
	for _, tt := range tests {
		if got := l.At(tt.pos); got != tt.want {
			t.Errorf("At(%v) = %d, want %d", tt.pos, got, tt.want)
		}
	}
}
