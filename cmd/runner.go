package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/desertthunder/tidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Service clients log in when they are created, so they are built on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	source     services.Source
	dest       services.Destination
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	auth       *configAuthorizer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	Source      services.Source      // built from the config on first use when nil
	Destination services.Destination // built from the config on first use when nil
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
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
		source:     opts.Source,
		dest:       opts.Destination,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// Before loads the configuration file named by --config and applies the log level.
//
// A missing file is not an error: the embedded defaults are used and commands that need credentials fail later.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	level := cmd.String("log-level")
	if level == "" {
		level = r.config.Log.Level
	}
	ll, err := shared.ParseLogLevel(level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, ll)
	return ctx, nil
}

// SetLogger replaces the logger used by the runner and by clients created afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, tidalCommand, syncCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// spotify returns the Spotify client, logging in on first use.
func (r *Runner) spotify(ctx context.Context) (services.Source, error) {
	if r.source != nil {
		return r.source, nil
	}

	creds := r.config.Credentials.Spotify
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	client, err := services.NewSpotifyClient(ctx, services.SpotifyOpts{
		Username:         creds.Username,
		ClientID:         creds.ClientID,
		ClientSecret:     creds.ClientSecret,
		RedirectURI:      creds.RedirectURI,
		RecommendationID: creds.RecommendationID,
		Authorizer:       r.authorizer(),
		HTTPClient:       r.httpClient,
		Logger:           r.logger,
	})
	if err != nil {
		return nil, err
	}

	r.source = client
	return client, nil
}

// tidal returns the TIDAL client, logging in on first use.
func (r *Runner) tidal(ctx context.Context) (services.Destination, error) {
	if r.dest != nil {
		return r.dest, nil
	}

	creds := r.config.Credentials.Tidal
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	client, err := services.NewTidalClient(ctx, services.TidalOpts{
		Username:    creds.Username,
		Password:    creds.Password,
		APIToken:    creds.APIToken,
		APIURL:      creds.APIURL,
		ListenURL:   creds.ListenURL,
		Description: r.config.Sync.Description,
		HTTPClient:  r.httpClient,
		Logger:      r.logger,
	})
	if err != nil {
		return nil, err
	}

	r.dest = client
	return client, nil
}

// engineOpts returns engine options from the [sync] config section.
func (r *Runner) engineOpts() tasks.EngineOpts {
	return tasks.EngineOpts{
		KeepExisting: !r.config.Sync.ReplaceExisting,
		Workers:      r.config.Sync.Workers,
		SearchRate:   r.config.Sync.SearchRate,
		Logger:       r.logger,
	}
}

// engine builds a [tasks.PlaylistEngine]. The destination is only logged into when withDest is set.
func (r *Runner) engine(ctx context.Context, withDest bool, opts tasks.EngineOpts) (*tasks.PlaylistEngine, error) {
	source, err := r.spotify(ctx)
	if err != nil {
		return nil, err
	}

	var dest services.Destination
	if withDest {
		if dest, err = r.tidal(ctx); err != nil {
			return nil, err
		}
	}
	return tasks.NewPlaylistEngine(source, dest, opts), nil
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

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
