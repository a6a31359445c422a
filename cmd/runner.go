package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/repositories"
	"github.com/desertthunder/tapedeck/internal/services"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/desertthunder/tapedeck/internal/tasks"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Collaborators left nil in [RunnerOpts] are built from the loaded configuration on first use.
type Runner struct {
	config      *shared.Config
	configFixed bool
	source      services.PlaylistSource
	assistant   services.Assistant
	acquirer    tasks.Acquirer
	db          *sql.DB
	ownsDB      bool
	history     *repositories.RunRepository
	logger      *log.Logger
	output      io.Writer
	confirm     func(message string) (bool, error)
	openBrowser func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	Source      services.PlaylistSource
	Assistant   services.Assistant
	Acquirer    tasks.Acquirer
	DB          *sql.DB
	Logger      *log.Logger
	Output      io.Writer
	Confirm     func(message string) (bool, error)
	OpenBrowser func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		config:      opts.Config,
		configFixed: opts.Config != nil,
		source:      opts.Source,
		assistant:   opts.Assistant,
		acquirer:    opts.Acquirer,
		db:          opts.DB,
		logger:      opts.Logger,
		output:      opts.Output,
		confirm:     opts.Confirm,
		openBrowser: opts.OpenBrowser,
	}

	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	if r.confirm == nil {
		r.confirm = surveyConfirm
	}
	if r.openBrowser == nil {
		r.openBrowser = shared.OpenBrowser
	}
	if r.db != nil {
		r.history = repositories.NewRunRepository(r.db)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		downloadCommand, carAudioCommand, listCommand, historyCommand, assistantCommand, authCommand, initCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, used while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// before loads configuration and applies the verbosity flags.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	switch {
	case cmd.Bool("verbose"):
		shared.SetLogLevel(r.logger, log.DebugLevel)
	case cmd.Bool("quiet"):
		shared.SetLogLevel(r.logger, log.WarnLevel)
	}

	if r.configFixed {
		return ctx, nil
	}

	if err := shared.LoadEnvFile(".env"); err != nil {
		r.logger.Warn("ignoring .env", "error", err)
	}

	path := cmd.String("config")
	config, err := shared.LoadConfig(path)
	switch {
	case err == nil:
		r.logger.Debug("loaded config", "path", path)
	case errors.Is(err, os.ErrNotExist) && !cmd.IsSet("config"):
		r.logger.Debug("no config file, using defaults and environment", "path", path)
		config = shared.DefaultConfig()
	case errors.Is(err, os.ErrNotExist):
		return ctx, fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
	default:
		return ctx, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}

	config.ApplyEnv(os.LookupEnv)
	r.config = config
	return ctx, nil
}

// after releases the history database opened by the runner.
func (r *Runner) after(context.Context, *cli.Command) error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db, r.history = nil, nil
	return err
}

// historyRepo opens the run history database once. A failure disables history with a warning.
func (r *Runner) historyRepo() *repositories.RunRepository {
	if r.history != nil || r.config.Database.Path == "" {
		return r.history
	}

	db, err := shared.OpenHistoryDatabase(r.config.Database)
	if err != nil {
		r.logger.Warn("run history disabled", "path", r.config.Database.Path, "error", err)
		r.config.Database.Path = ""
		return nil
	}
	r.db, r.ownsDB = db, true
	r.history = repositories.NewRunRepository(db)
	return r.history
}

func surveyConfirm(message string) (bool, error) {
	answer := false
	err := survey.AskOne(&survey.Confirm{Message: message}, &answer)
	if errors.Is(err, terminal.InterruptErr) {
		return false, nil
	}
	return answer, err
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
