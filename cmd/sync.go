package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"github.com/vikify/resolver/internal/formatter"
	"github.com/vikify/resolver/internal/pipeline"
	"github.com/vikify/resolver/internal/repositories"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/tasks"
)

type syncTotals struct {
	Batches   int `json:"batches"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// ImportSpotify stores a Spotify playlist as unresolved songs, which schedules a sync.
func (r *Runner) ImportSpotify(ctx context.Context, cmd *cli.Command) error {
	id, err := services.ParsePlaylistID(cmd.Args().First())
	if err != nil {
		return err
	}

	source := r.playlists
	if source == nil {
		if source, err = services.NewSpotifyService(ctx, r.config.Credentials.Spotify); err != nil {
			return err
		}
	}

	s, err := r.open(pipeline.Deps{PlaylistSource: source})
	if err != nil {
		return err
	}
	defer s.Close()

	r.logger.Info("importing playlist", "source", source.Name(), "playlist", id)

	progressCh := make(chan tasks.ProgressUpdate, 10)
	done := r.showProgress(progressCh)
	res, err := s.ImportPlaylist(ctx, id, progressCh)
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("wait") && res.Added > 0 {
		r.writePlain("\n🔄 Waiting for scheduled sync batches...\n")
		waitIdle(ctx, s)
	}

	st, err := s.Status(ctx)
	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writeHeader("Import Complete!")
	r.writeLine(r.styles.KeyValue([][2]string{
		{"playlist", res.Playlist.Name},
		{"tracks", fmt.Sprint(res.Total)},
		{"added", fmt.Sprint(res.Added)},
		{"unresolved", fmt.Sprint(st.Unresolved)},
	}))
	if st.Unresolved > 0 && !cmd.Bool("wait") {
		r.writeLine(r.styles.Help("run 'vikify-resolver sync run' to match the remaining tracks"))
	}
	return nil
}

// SyncRun matches unresolved songs to the catalog.
//
// Batches run in the foreground until nothing is left, a batch resolves nothing, or
// --batches is reached. With --background the batch is handed to the scheduler, which
// chains follow-up batches on its own until the context is cancelled.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(pipeline.Deps{})
	if err != nil {
		return err
	}
	defer s.Close()

	if cmd.Bool("background") {
		if !s.EnqueueSync() {
			r.writeLine(r.styles.Warn("sync already scheduled"))
		}
		waitIdle(ctx, s)
		return r.writeSyncStatus(ctx, s, cmd.Bool("json"), cmd.Bool("pretty"))
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	var done <-chan struct{}
	if !cmd.Bool("json") {
		done = r.showProgress(progressCh)
	}

	totals, runErr := syncBatches(ctx, s, cmd.Int("batches"), progressCh)
	close(progressCh)
	if done != nil {
		<-done
	}
	if runErr != nil {
		return runErr
	}

	if cmd.Bool("json") {
		return r.writeJSON(totals, cmd.Bool("pretty"))
	}

	r.writePlain("\n")
	r.writeHeader("Sync Complete!")
	r.writeLine(r.styles.KeyValue([][2]string{
		{"batches", fmt.Sprint(totals.Batches)},
		{"resolved", fmt.Sprint(totals.Resolved)},
		{"failed", fmt.Sprint(totals.Failed)},
		{"remaining", fmt.Sprint(totals.Remaining)},
	}))
	return nil
}

// SyncStatus prints the pipeline status and lists imported songs in the chosen format.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(pipeline.Deps{})
	if err != nil {
		return err
	}
	defer s.Close()

	if cmd.Bool("json") {
		return r.writeSyncStatus(ctx, s, true, cmd.Bool("pretty"))
	}

	songs, err := repositories.NewSongRepository(s.db).List(ctx, cmd.Bool("unresolved"), cmd.Int("limit"))
	if err != nil {
		return err
	}

	format, title := cmd.String("format"), "Imported Songs"
	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteExport(path, format, title, songs); err != nil {
			return err
		}
		r.writeLine(r.styles.OK("wrote %d songs to %s", len(songs), path))
		return nil
	}

	if err := r.writeSyncStatus(ctx, s, false, false); err != nil {
		return err
	}
	data, err := formatter.Export(format, title, songs)
	if err != nil {
		return err
	}
	r.writePlain("\n%s", data)
	return nil
}

func (r *Runner) writeSyncStatus(ctx context.Context, s *session, asJSON, pretty bool) error {
	st, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return r.writeJSON(st, pretty)
	}

	r.writeHeader("Sync Status")
	r.writeLine(r.styles.KeyValue([][2]string{
		{"sync", st.SyncState},
		{"unresolved", fmt.Sprint(st.Unresolved)},
		{"cached", fmt.Sprint(st.Cache.Cached)},
		{"in flight", fmt.Sprint(st.Cache.InFlight)},
	}))
	return nil
}

// syncBatches runs foreground batches. limit <= 0 means no batch limit.
func syncBatches(ctx context.Context, s *session, limit int, progress chan<- tasks.ProgressUpdate) (syncTotals, error) {
	var totals syncTotals
	for {
		res, err := s.SyncOnce(ctx, progress)
		totals.Batches++
		totals.Resolved += res.Resolved
		totals.Failed += res.Failed
		totals.Remaining = res.Remaining
		if err != nil {
			return totals, err
		}

		if res.Total == 0 || res.Remaining == 0 || res.Resolved == 0 {
			return totals, nil
		}
		if limit > 0 && totals.Batches >= limit {
			return totals, nil
		}
	}
}

// waitIdle blocks until scheduled work drains or ctx is done, cancelling sync work in the latter case.
func waitIdle(ctx context.Context, s *session) {
	idle := make(chan struct{})
	go func() {
		s.Wait()
		close(idle)
	}()

	select {
	case <-idle:
	case <-ctx.Done():
		s.CancelSync()
		<-idle
	}
}

// showProgress prints updates until progress is closed. The returned channel closes once it has.
func (r *Runner) showProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ExportPlaylist:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.PersistTracks:
				r.writePlain("💾 %s\n", update.Message)
			case tasks.PullBatch:
				r.writePlain("\n🔍 %s\n", update.Message)
			case tasks.MatchTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.Reenqueue:
				r.writePlain("\n🔄 %s\n", update.Message)
			}
		}
	}()
	return done
}

func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import playlists from other catalogs as unresolved songs",
		Commands: []*cli.Command{
			{
				Name:      "spotify",
				Usage:     "Import a Spotify playlist by id, URI or URL",
				ArgsUsage: "<playlist>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "wait", Usage: "Wait for the scheduled sync batches to finish"},
				},
				Action: r.ImportSpotify,
			},
		},
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Match imported songs to the internal catalog",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run sync batches",
				Flags: append([]cli.Flag{
					&cli.IntFlag{Name: "batches", Usage: "Stop after this many batches (0 runs until done)"},
					&cli.BoolFlag{Name: "background", Usage: "Schedule the batch and let follow-ups chain until interrupted"},
				}, jsonFlags()...),
				Action: r.SyncRun,
			},
			{
				Name:  "status",
				Usage: "Show sync state and imported songs",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Song list format: text, csv or markdown",
						Value:   formatter.FormatText,
					},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the song list to a file"},
					&cli.BoolFlag{Name: "unresolved", Usage: "Only list unresolved songs"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of songs to list"},
				}, jsonFlags()...),
				Action: r.SyncStatus,
			},
		},
	}
}
