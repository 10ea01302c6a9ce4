package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sealkv/internal/config"
	"github.com/roach88/sealkv/internal/keys"
)

// ProvisionOptions holds flags for the provision command.
type ProvisionOptions struct {
	*RootOptions
	GenerateKey bool
}

// ProvisionResult describes a newly provisioned store.
type ProvisionResult struct {
	Profile      string `json:"profile"`
	Method       string `json:"method"`
	GeneratedKey string `json:"generated_key,omitempty"`
}

func (r ProvisionResult) String() string {
	s := fmt.Sprintf("Provisioned store (key method %s), default profile %q", r.Method, r.Profile)
	if r.GeneratedKey != "" {
		s += "\nRaw key (store it safely, it cannot be recovered): " + r.GeneratedKey
	}
	return s
}

// NewProvisionCommand creates the provision command.
func NewProvisionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProvisionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Initialize a new store",
		Long: `Initialize a new store: create the schema, record the key method and a
key-check value, and create the default profile (named by --profile, or a
random UUID).

Example:
  sealkv provision --db ./vault.db --generate-key
  SEALKV_PASS_KEY=secret sealkv provision --db ./vault.db --key-method kdf:argon2i:mod`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts.RootOptions, cmd, func(ctx context.Context) (any, error) {
				return runProvision(ctx, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.GenerateKey, "generate-key", false, "generate a raw key when no pass key is given")

	return cmd
}

func runProvision(ctx context.Context, opts *ProvisionOptions) (any, error) {
	sess, err := openSession(ctx, opts.RootOptions, false)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	method, err := keys.ParseKeyMethod(sess.cfg.Key.Method)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid key method", err)
	}

	passKey, generated := sess.cfg.Key.PassKey, ""
	if passKey == "" {
		if !opts.GenerateKey || method != keys.MethodRaw {
			return nil, NewExitError(ExitCommandError,
				"a pass key is required: use --pass-key, set "+config.EnvPassKey+", or --generate-key with the raw method")
		}
		if passKey, err = keys.GenerateRawKey(); err != nil {
			return nil, err
		}
		generated = passKey
	}

	profile, err := sess.store.Provision(ctx, method, passKey, sess.cfg.Profile)
	if err != nil {
		return nil, err
	}
	return ProvisionResult{Profile: profile, Method: string(method), GeneratedKey: generated}, nil
}
