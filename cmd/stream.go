package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/vikify/resolver/internal/models"
	"github.com/vikify/resolver/internal/pipeline"
	"github.com/vikify/resolver/internal/repositories"
	"github.com/vikify/resolver/internal/shared"
)

type streamOutput struct {
	TrackID    string    `json:"track_id"`
	URL        string    `json:"url"`
	Source     string    `json:"source"`
	ResolvedAt time.Time `json:"resolved_at"`
}

type queueOutput struct {
	Queue  []string `json:"queue"`
	Index  int      `json:"index"`
	Issued []string `json:"issued"`
	Warm   []string `json:"warm"`
}

// StreamResolve resolves a playable URL for one track.
func (r *Runner) StreamResolve(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(pipeline.Deps{})
	if err != nil {
		return err
	}
	defer s.Close()

	track, err := s.mapped(ctx, trackFromFlags(cmd))
	if err != nil {
		return err
	}

	stream, err := s.Resolver.Resolve(ctx, track)
	if err != nil {
		return err
	}

	out := streamOutput{
		TrackID:    stream.TrackID,
		URL:        stream.URL,
		Source:     stream.Source.String(),
		ResolvedAt: stream.ResolvedAt,
	}
	if cmd.Bool("json") {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writeHeader("Stream Resolved")
	r.writeLine(r.styles.KeyValue([][2]string{
		{"track", out.TrackID},
		{"url", out.URL},
		{"source", out.Source},
		{"resolved", out.ResolvedAt.Format(time.RFC3339)},
	}))
	return nil
}

// StreamPrefetch warms one track on the backend and waits for the preload to finish.
func (r *Runner) StreamPrefetch(ctx context.Context, cmd *cli.Command) error {
	track := trackFromFlags(cmd)
	if err := track.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMissingArgument, err)
	}

	s, err := r.open(pipeline.Deps{})
	if err != nil {
		return err
	}
	defer s.Close()

	if track, err = s.mapped(ctx, track); err != nil {
		return err
	}

	issued := s.Resolver.Prefetch(track)
	s.Wait()

	switch {
	case !issued:
		r.writeLine(r.styles.Warn("skipped %s: fresh, in flight or unresolved", track.ID))
	case s.Cache.IsFresh(track.ID):
		r.writeLine(r.styles.OK("preloaded %s", track.ID))
	default:
		return fmt.Errorf("%w: preload of %s failed", shared.ErrStreamUnavailable, track.ID)
	}
	return nil
}

// QueuePreload warms the tracks after --index in the queue given as arguments.
//
// Without arguments the queue is every imported song, in import order.
func (r *Runner) QueuePreload(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(pipeline.Deps{})
	if err != nil {
		return err
	}
	defer s.Close()

	queue, err := r.queueFromArgs(ctx, s, cmd.Args().Slice())
	if err != nil {
		return err
	}

	index := cmd.Int("index")
	issued := s.Queue.PreloadQueue(queue, index, cmd.Int("count"))
	s.Wait()

	out := queueOutput{Index: index, Issued: issued}
	for _, t := range queue {
		out.Queue = append(out.Queue, t.ID)
	}
	for _, id := range issued {
		if s.Cache.IsFresh(id) {
			out.Warm = append(out.Warm, id)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writeHeader(fmt.Sprintf("Queue Preload (%d tracks, index %d)", len(queue), index))
	if len(issued) == 0 {
		r.writeLine(r.styles.Help("nothing to preload"))
		return nil
	}
	for _, id := range issued {
		if s.Cache.IsFresh(id) {
			r.writeLine(r.styles.OK("%s", id))
		} else {
			r.writeLine(r.styles.Fail("%s", id))
		}
	}
	return nil
}

// queueFromArgs turns "id" or "id:title:artist" arguments into track refs.
func (r *Runner) queueFromArgs(ctx context.Context, s *session, args []string) ([]models.TrackRef, error) {
	if len(args) > 0 {
		queue := make([]models.TrackRef, len(args))
		for i, arg := range args {
			parts := strings.SplitN(arg, ":", 3)
			queue[i].ID = parts[0]
			if len(parts) > 1 {
				queue[i].Title = parts[1]
			}
			if len(parts) > 2 {
				queue[i].Artist = parts[2]
			}
		}
		return queue, nil
	}

	songs, err := repositories.NewSongRepository(s.db).List(ctx, false, 0)
	if err != nil {
		return nil, err
	}
	queue := make([]models.TrackRef, len(songs))
	for i, song := range songs {
		queue[i] = song.TrackRef()
	}
	return queue, nil
}

// mapped fills in the catalog id of an imported track once the sync worker has matched it.
// Songs that were never imported, or are still unresolved, are returned unchanged.
func (s *session) mapped(ctx context.Context, track models.TrackRef) (models.TrackRef, error) {
	if track.ID != "" || track.ExternalID == "" {
		return track, nil
	}

	id, ok, err := repositories.NewSongRepository(s.db).InternalID(ctx, track.ExternalID)
	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		return track, nil
	case err != nil:
		return track, err
	case ok:
		track.ID = id
	}
	return track, nil
}

func trackFromFlags(cmd *cli.Command) models.TrackRef {
	return models.TrackRef{
		ID:          cmd.String("id"),
		Title:       cmd.String("title"),
		Artist:      cmd.String("artist"),
		DurationSec: cmd.Int("duration"),
		ExternalID:  cmd.String("external-id"),
	}
}

func trackFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "Internal catalog id"},
		&cli.StringFlag{Name: "title", Usage: "Track title"},
		&cli.StringFlag{Name: "artist", Usage: "Track artist"},
		&cli.IntFlag{Name: "duration", Usage: "Track duration in seconds"},
		&cli.StringFlag{Name: "external-id", Usage: "Id in the source catalog; mapped to the catalog id once synced"},
	}
}

func streamCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Resolve and prefetch playable stream URLs",
		Commands: []*cli.Command{
			{
				Name:   "resolve",
				Usage:  "Resolve a stream URL, retrying the backend",
				Flags:  append(trackFlags(), jsonFlags()...),
				Action: r.StreamResolve,
			},
			{
				Name:   "prefetch",
				Usage:  "Ask the backend to warm a track",
				Flags:  trackFlags(),
				Action: r.StreamPrefetch,
			},
		},
	}
}

func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Play queue operations",
		Commands: []*cli.Command{
			{
				Name:      "preload",
				Usage:     "Prefetch the tracks that follow the current position",
				ArgsUsage: "[id[:title[:artist]]...]",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "index", Usage: "Current queue position", Value: 0},
					&cli.IntFlag{Name: "count", Usage: "How many upcoming tracks to warm (0 uses the configured count)"},
				}, jsonFlags()...),
				Action: r.QueuePreload,
			},
		},
	}
}
