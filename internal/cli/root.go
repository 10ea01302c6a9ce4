package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sealkv/internal/config"
	"github.com/roach88/sealkv/internal/metrics"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Metrics bool   // dump sealkv_ metrics to stderr after the command

	Config  string // path to a .yaml/.yml/.cue config file
	Driver  string
	DSN     string
	Dialect string
	Method  string
	PassKey string
	Profile string
	Workers int

	logLevel slog.LevelVar
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sealkv CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sealkv",
		Short: "sealkv - encrypted key-value store",
		Long: `An encrypted key-value store over SQLite, PostgreSQL or MySQL.

Entry categories, names, values and tags are encrypted at rest. Tags stay
searchable: filters are compiled to SQL over the encrypted values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(opts, cmd)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Metrics {
				return nil
			}
			return metrics.WriteText(cmd.ErrOrStderr())
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.BoolVar(&opts.Metrics, "metrics", false, "print metrics to stderr on exit")
	flags.StringVarP(&opts.Config, "config", "c", "", "config file (.yaml, .yml or .cue)")
	flags.StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|sqlite|pgx|postgres|mysql)")
	flags.StringVar(&opts.DSN, "db", "", "database DSN or SQLite file path")
	flags.StringVar(&opts.Dialect, "dialect", "", "override the SQL dialect implied by the driver")
	flags.StringVar(&opts.Method, "key-method", "", "key method (raw|kdf:argon2i:mod|kdf:argon2i:int)")
	flags.StringVar(&opts.PassKey, "pass-key", "", "pass key or raw key (prefer SEALKV_PASS_KEY)")
	flags.StringVarP(&opts.Profile, "profile", "p", "", "profile name (default: the store's default profile)")
	flags.IntVar(&opts.Workers, "workers", 0, "encryption worker pool size")

	// Add subcommands
	cmd.AddCommand(NewProvisionCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// setupLogging installs a text slog handler on stderr. The level starts at
// Info and follows log_level once the config is loaded; --verbose pins Debug.
func setupLogging(opts *RootOptions, cmd *cobra.Command) {
	opts.logLevel.Set(slog.LevelInfo)
	if opts.Verbose {
		opts.logLevel.Set(slog.LevelDebug)
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: &opts.logLevel})
	slog.SetDefault(slog.New(handler))
}

// applyLogLevel switches the handler to cfg's log_level unless --verbose is set.
func (o *RootOptions) applyLogLevel(cfg config.Config) {
	if o.Verbose {
		return
	}
	if level, err := cfg.SlogLevel(); err == nil {
		o.logLevel.Set(level)
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
