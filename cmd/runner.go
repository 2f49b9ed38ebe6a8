package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"github.com/vikify/resolver/internal/pipeline"
	"github.com/vikify/resolver/internal/services"
	"github.com/vikify/resolver/internal/shared"
	"github.com/vikify/resolver/internal/ui"
)

const flushTimeout = 2 * time.Second

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	reporter   shared.Reporter
	output     io.Writer
	styles     *ui.Palette
	db         *sql.DB
	playlists  services.PlaylistSource
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Reporter   shared.Reporter
	Output     io.Writer
	// DB is shared by every command when set. Otherwise each command opens the configured database.
	DB *sql.DB
	// Playlists replaces the Spotify client built from credentials.
	Playlists services.PlaylistSource
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Reporter == nil {
		opts.Reporter = shared.NopReporter{}
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		reporter:   opts.Reporter,
		output:     opts.Output,
		styles:     ui.Styles,
		db:         opts.DB,
		playlists:  opts.Playlists,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, streamCommand, queueCommand, lyricsCommand, importCommand, syncCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// session is an open pipeline plus the database it was built on.
type session struct {
	*pipeline.Pipeline
	db    *sql.DB
	close func() error
}

// open builds a pipeline for one command. Close the session when the command returns.
func (r *Runner) open(deps pipeline.Deps) (*session, error) {
	db := r.db
	ownDB := db == nil
	if ownDB {
		var err error
		if db, err = shared.OpenDatabase(r.config.Database); err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	deps.DB = db
	deps.HTTPClient = r.httpClient
	deps.Reporter = r.reporter
	deps.Logger = r.logger
	if deps.PlaylistSource == nil {
		deps.PlaylistSource = r.playlists
	}

	p, err := pipeline.New(r.config, deps)
	if err != nil {
		if ownDB {
			db.Close()
		}
		return nil, err
	}

	return &session{Pipeline: p, db: db, close: func() error {
		err := p.Close()
		if ownDB {
			if cerr := db.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	}}, nil
}

// openWithMetrics is open with the pipeline collectors registered on a fresh registry.
func (r *Runner) openWithMetrics() (*session, *prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	s, err := r.open(pipeline.Deps{Registerer: reg})
	return s, reg, err
}

func (s *session) Close() {
	_ = s.close()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeLine(s string) error {
	return r.writePlain("%s\n", s)
}

func (r *Runner) writeHeader(title string) {
	r.writeLine(r.styles.Header(title))
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
	}
}
