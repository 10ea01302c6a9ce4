package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/querysql"
)

// compileBase is the statement a compiled filter is appended to when paging
// flags ask for a full query.
const compileBase = "SELECT i.id FROM items i WHERE 1 = 1"

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect string
	Start   int
	Encrypt bool
	Offset  int64
	Limit   int64
}

// CompileResult is a compiled tag filter.
type CompileResult struct {
	Dialect   string   `json:"dialect"`
	Clause    string   `json:"clause"`
	Args      []string `json:"args"`
	NextIndex int64    `json:"next_index"`
	Query     string   `json:"query,omitempty"`
	QueryArgs []string `json:"query_args,omitempty"`
}

func (r CompileResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "clause: %s\nargs: [%s]\nnext index: %d", r.Clause, strings.Join(r.Args, ", "), r.NextIndex)
	if r.Query != "" {
		fmt.Fprintf(&b, "\nquery: %s\nquery args: [%s]", r.Query, strings.Join(r.QueryArgs, ", "))
	}
	return b.String()
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <filter-json>",
		Short: "Compile a tag filter to SQL",
		Long: `Compile a JSON tag filter to the SQL clause and arguments a store would run.

Without --encrypt, tag names and values are shown unencrypted. With --encrypt,
they are encrypted with the raw key given by --pass-key, scoped to --profile.
Paging flags append the filter to a sample query and add the limit clause.
The --start arguments bound before the filter are listed as <arg N>.

Example:
  sealkv compile '{"color":"red","~year":{"$gte":"2020"}}' --sql-dialect postgres
  sealkv compile '{"$or":[{"size":"S"},{"size":"M"}]}' --start 3 --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(opts.RootOptions, cmd, func(ctx context.Context) (any, error) {
				var page querysql.Page
				if cmd.Flags().Changed("offset") {
					page.Offset = querysql.Int64(opts.Offset)
				}
				if cmd.Flags().Changed("limit") {
					page.Limit = querysql.Int64(opts.Limit)
				}
				return runCompile(ctx, opts, args[0], page)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "sql-dialect", querysql.DialectSQLite, "dialect to render (default|sqlite|postgres|mysql)")
	cmd.Flags().IntVar(&opts.Start, "start", 0, "number of arguments already bound before the filter")
	cmd.Flags().BoolVar(&opts.Encrypt, "encrypt", false, "encrypt tag names and values with the raw pass key")
	cmd.Flags().Int64Var(&opts.Offset, "offset", 0, "pagination offset")
	cmd.Flags().Int64Var(&opts.Limit, "limit", 0, "pagination limit")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, raw string, page querysql.Page) (any, error) {
	d, err := querysql.LookupDialect(opts.Dialect)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --sql-dialect", err)
	}
	if opts.Start < 0 {
		return nil, NewExitError(ExitCommandError, "--start must not be negative")
	}
	q, err := parseFilter(raw)
	if err != nil {
		return nil, err
	}

	var enc keys.TagEncryptor
	if opts.Encrypt {
		if enc, err = compileKey(opts); err != nil {
			return nil, err
		}
	}

	f, err := querysql.EncodeTagFilter(ctx, nil, d, q, enc, opts.Start)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, NewExitError(ExitCommandError, "empty filter")
	}

	res := CompileResult{Dialect: d.Name(), Clause: f.Clause, NextIndex: f.NextIndex}
	for _, a := range f.Args {
		res.Args = append(res.Args, formatArg(a))
	}
	if page.IsSet() {
		params := querysql.NewParams()
		for i := 1; i <= opts.Start; i++ {
			params.Push(priorArg(i))
		}
		res.Query = querysql.ExtendQuery(d, compileBase, params, f, page)
		for _, a := range params.Args() {
			res.QueryArgs = append(res.QueryArgs, formatArg(a))
		}
	}
	return res, nil
}

// priorArg stands in for an argument the caller binds before the filter.
type priorArg int

func (a priorArg) String() string { return fmt.Sprintf("<arg %d>", int(a)) }

// compileKey derives the profile-scoped key for --encrypt. Only raw keys are
// accepted: KDF methods need the salt stored in a provisioned database.
func compileKey(opts *CompileOptions) (*keys.StoreKey, error) {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return nil, err
	}
	method, err := keys.ParseKeyMethod(cfg.Key.Method)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid key method", err)
	}
	if method != keys.MethodRaw {
		return nil, NewExitError(ExitCommandError, "--encrypt only supports the raw key method")
	}
	if cfg.Key.PassKey == "" || cfg.Profile == "" {
		return nil, NewExitError(ExitCommandError, "--encrypt needs --pass-key and --profile")
	}
	key, err := keys.OpenStoreKey(method, cfg.Key.PassKey, nil)
	if err != nil {
		return nil, err
	}
	return key.ForProfile(cfg.Profile)
}
