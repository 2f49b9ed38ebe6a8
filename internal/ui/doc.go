// Package ui styles command-line output with lipgloss.
//
// [Palette] holds the named styles (title, ok, err, warn, help) and renders the
// building blocks the CLI prints: headers framed by rules, status lines and
// aligned key/value summaries. Output degrades to plain text when the writer is
// not a terminal.
package ui
