package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sealkv/internal/config"
	"github.com/roach88/sealkv/internal/store"
	"github.com/roach88/sealkv/internal/worker"
)

// session is an open store plus the resources backing it.
type session struct {
	cfg   config.Config
	store *store.Store
	pool  *worker.Pool
}

// loadConfig layers the config file (or defaults), SEALKV_PASS_KEY and flags.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	} else {
		cfg.ApplyEnv()
	}

	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.DSN != "" {
		cfg.Database.DSN = opts.DSN
	}
	if opts.Dialect != "" {
		cfg.Database.Dialect = opts.Dialect
	}
	if opts.Method != "" {
		cfg.Key.Method = opts.Method
	}
	if opts.PassKey != "" {
		cfg.Key.PassKey = opts.PassKey
	}
	if opts.Profile != "" {
		cfg.Profile = opts.Profile
	}
	if opts.Workers != 0 {
		cfg.Workers = opts.Workers
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	opts.applyLogLevel(cfg)
	return cfg, nil
}

// openSession opens the configured store. With unlock set it also unlocks
// the store with the configured pass key.
func openSession(ctx context.Context, opts *RootOptions, unlock bool) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if unlock && cfg.Key.PassKey == "" {
		return nil, NewExitError(ExitCommandError, "a pass key is required: use --pass-key or set "+config.EnvPassKey)
	}

	pool, err := worker.NewPool(cfg.Workers)
	if err != nil {
		return nil, err
	}

	slog.Debug("opening store", "driver", cfg.Database.Driver, "dialect", cfg.Database.Dialect)
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Database.Driver,
		DSN:         cfg.Database.DSN,
		Dialect:     cfg.Database.Dialect,
		Pool:        pool,
		Concurrency: cfg.Workers,
	})
	if err != nil {
		_ = pool.Release(time.Second)
		return nil, err
	}

	sess := &session{cfg: cfg, store: st, pool: pool}
	if unlock {
		if err := st.Unlock(ctx, cfg.Key.PassKey); err != nil {
			sess.Close()
			return nil, err
		}
	}
	return sess, nil
}

// Close closes the store and releases the worker pool.
func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
	if err := s.pool.Release(time.Second); err != nil {
		slog.Warn("worker pool did not drain", "error", err)
	}
}

// newFormatter builds the formatter for cmd's output streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// execute runs fn and reports its result or error through the formatter.
func execute(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context) (any, error)) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := fn(ctx)
	if err != nil {
		return f.Fail(err)
	}
	return f.Success(data)
}

// withStore runs fn against an unlocked store.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, sess *session) (any, error)) error {
	return execute(opts, cmd, func(ctx context.Context) (any, error) {
		sess, err := openSession(ctx, opts, true)
		if err != nil {
			return nil, err
		}
		defer sess.Close()
		return fn(ctx, sess)
	})
}
