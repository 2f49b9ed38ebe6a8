// package lrc parses and renders LRC time-synced lyrics
package lrc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// timeTag matches [mm:ss], [mm:ss.xx] and [mm:ss.xxx] (":" is accepted as the fraction separator too).
var timeTag = regexp.MustCompile(`\[(\d{1,3}):(\d{1,2})(?:[.:](\d{1,3}))?\]`)

// metaTag matches header tags such as [ar:Artist] or [offset:+250].
var metaTag = regexp.MustCompile(`^\[([a-zA-Z#]+):(.*)\]$`)

// Line is a lyric line. Time is zero for unsynced lines.
type Line struct {
	Time time.Duration
	Text string
}

// Lyrics is the parsed form of a lyric document.
type Lyrics struct {
	Lines  []Line
	Synced bool
	Meta   map[string]string
}

// Parse reads LRC text. A line may carry several time tags and is emitted once per tag.
// When no line carries a time tag the text is kept as unsynced lines in input order.
func Parse(text string) Lyrics {
	out := Lyrics{Meta: map[string]string{}}
	var offset time.Duration
	var untimed []Line

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		tags := timeTag.FindAllStringSubmatchIndex(raw, -1)
		if len(tags) == 0 || tags[0][0] != 0 {
			if m := metaTag.FindStringSubmatch(raw); m != nil {
				key := strings.ToLower(m[1])
				val := strings.TrimSpace(m[2])
				out.Meta[key] = val
				if key == "offset" {
					if ms, err := strconv.Atoi(val); err == nil {
						offset = time.Duration(ms) * time.Millisecond
					}
				}
				continue
			}
			untimed = append(untimed, Line{Text: raw})
			continue
		}

		// leading tags only; a tag in the middle of the text belongs to the text
		end := 0
		var stamps []time.Duration
		for _, loc := range tags {
			if loc[0] != end {
				break
			}
			stamps = append(stamps, tagTime(raw, loc))
			end = loc[1]
		}

		lyric := strings.TrimSpace(raw[end:])
		for _, ts := range stamps {
			out.Lines = append(out.Lines, Line{Time: ts, Text: lyric})
		}
	}

	if len(out.Lines) == 0 {
		out.Lines = untimed
		return out
	}

	out.Synced = true
	for i := range out.Lines {
		// a positive offset shifts lyrics earlier
		t := out.Lines[i].Time - offset
		if t < 0 {
			t = 0
		}
		out.Lines[i].Time = t
	}
	sort.SliceStable(out.Lines, func(i, j int) bool { return out.Lines[i].Time < out.Lines[j].Time })
	return out
}

func tagTime(s string, loc []int) time.Duration {
	mins, _ := strconv.Atoi(s[loc[2]:loc[3]])
	secs, _ := strconv.Atoi(s[loc[4]:loc[5]])
	d := time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second
	if loc[6] >= 0 {
		frac := s[loc[6]:loc[7]]
		n, _ := strconv.Atoi(frac)
		switch len(frac) {
		case 1:
			d += time.Duration(n) * 100 * time.Millisecond
		case 2:
			d += time.Duration(n) * 10 * time.Millisecond
		default:
			d += time.Duration(n) * time.Millisecond
		}
	}
	return d
}

// Format renders lines as LRC with [mm:ss.xx] tags. Unsynced input is rendered as plain text.
func Format(l Lyrics) string {
	var b strings.Builder
	for _, line := range l.Lines {
		if l.Synced {
			b.WriteString(FormatTime(line.Time))
		}
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatTime renders d as an [mm:ss.xx] tag.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := d.Milliseconds() / 10
	return fmt.Sprintf("[%02d:%02d.%02d]", cs/6000, (cs/100)%60, cs%100)
}

// String returns the LRC rendering.
func (l Lyrics) String() string {
	return Format(l)
}

// At returns the index of the line active at position, or -1 before the first line.
func (l Lyrics) At(position time.Duration) int {
	if !l.Synced {
		return -1
	}
	i := sort.Search(len(l.Lines), func(i int) bool { return l.Lines[i].Time > position })
	return i - 1
}
