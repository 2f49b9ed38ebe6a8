package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"github.com/vikify/resolver/internal/lrc"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/pipeline"
	"github.com/vikify/resolver/internal/shared"
)

type lyricsOutput struct {
	TrackID  string `json:"track_id"`
	Found    bool   `json:"found"`
	Source   string `json:"source"`
	Provider string `json:"provider,omitempty"`
	Synced   bool   `json:"synced"`
	Text     string `json:"text,omitempty"`
}

type providerOutput struct {
	Provider string `json:"provider"`
	Lines    int    `json:"lines"`
	Synced   bool   `json:"synced"`
	Text     string `json:"text"`
}

// LyricsGet resolves lyrics for one track: cache, store, local file and providers.
func (r *Runner) LyricsGet(ctx context.Context, cmd *cli.Command) error {
	track := trackFromFlags(cmd)
	track.Path = cmd.String("path")
	if track.ID == "" {
		return fmt.Errorf("%w: --id is required", shared.ErrMissingArgument)
	}

	s, err := r.open(pipeline.Deps{})
	if err != nil {
		return err
	}
	defer s.Close()

	res := s.Lyrics.Get(ctx, track)
	out := lyricsOutput{
		TrackID:  res.TrackID,
		Found:    res.Found(),
		Source:   string(res.Source),
		Provider: res.Provider,
		Synced:   res.Lyrics.Synced,
		Text:     res.Text,
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(out, cmd.Bool("pretty"))
	case !res.Found():
		r.writeLine(r.styles.Fail("no lyrics for %s", track.ID))
		return nil
	case cmd.Bool("lrc"):
		return r.writePlain("%s", lrc.Format(res.Lyrics))
	}

	title := fmt.Sprintf("Lyrics: %s (%s", track.ID, res.Source)
	if res.Provider != "" {
		title += ", " + res.Provider
	}
	r.writeHeader(title + ")")
	r.writeLyrics(res.Lyrics)
	return nil
}

// LyricsAll asks every enabled provider and prints each answer as it arrives.
func (r *Runner) LyricsAll(ctx context.Context, cmd *cli.Command) error {
	track := trackFromFlags(cmd)
	if track.Title == "" {
		return fmt.Errorf("%w: --title is required", shared.ErrMissingArgument)
	}

	s, err := r.open(pipeline.Deps{})
	if err != nil {
		return err
	}
	defer s.Close()

	asJSON := cmd.Bool("json")
	if !asJSON {
		r.writeHeader(fmt.Sprintf("Lyrics: %s - %s", track.Artist, track.Title))
	}

	var out []providerOutput
	results := s.Lyrics.GetAllLyrics(ctx, track, func(res models.LyricsResult) {
		parsed := lrc.Parse(res.LyricsText)
		if asJSON {
			out = append(out, providerOutput{
				Provider: res.ProviderName,
				Lines:    len(parsed.Lines),
				Synced:   parsed.Synced,
				Text:     res.LyricsText,
			})
			return
		}
		r.writeLine(r.styles.OK("%s: %d lines (synced: %t)", res.ProviderName, len(parsed.Lines), parsed.Synced))
	})

	if asJSON {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}
	if len(results) == 0 {
		r.writeLine(r.styles.Fail("no provider returned lyrics"))
	}
	return nil
}

func (r *Runner) writeLyrics(l lrc.Lyrics) {
	for _, line := range l.Lines {
		if l.Synced {
			r.writePlain("%s %s\n", r.styles.Help("%s", lrc.FormatTime(line.Time)), line.Text)
		} else {
			r.writeLine(line.Text)
		}
	}
}

func lyricsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lyrics",
		Usage: "Resolve time-synced lyrics",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Resolve lyrics for a track, persisting remote results",
				Flags: append(append(trackFlags(),
					&cli.StringFlag{Name: "path", Usage: "Local audio file, checked for a sibling .lrc or embedded lyrics"},
					&cli.BoolFlag{Name: "lrc", Usage: "Print LRC text"},
				), jsonFlags()...),
				Action: r.LyricsGet,
			},
			{
				Name:   "all",
				Usage:  "Collect lyrics from every enabled provider",
				Flags:  append(trackFlags(), jsonFlags()...),
				Action: r.LyricsAll,
			},
		},
	}
}
