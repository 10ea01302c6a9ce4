package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sealkv/internal/kv"
	"github.com/roach88/sealkv/internal/querysql"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Tags    []string
	Expire  time.Duration
	Replace bool
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <category> <name> <value>",
		Short: "Insert or replace an entry",
		Long: `Insert an entry, or replace an existing one with --replace.

Tags are given as name=value. A name starting with "~" is a plaintext tag:
its value is stored unencrypted so filters can range-compare it.

Example:
  sealkv put credential alice s3cret --tag color=red --tag ~year=2021
  sealkv put session tok123 data --expire 1h`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts.RootOptions, cmd, func(ctx context.Context, sess *session) (any, error) {
				return runPut(ctx, opts, sess, args, cmd.Flags().Changed("expire"))
			})
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Tags, "tag", "t", nil, "tag as name=value (repeatable, ~name for plaintext)")
	cmd.Flags().DurationVar(&opts.Expire, "expire", 0, "expire the entry after this duration")
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "replace an existing entry instead of inserting")

	return cmd
}

func runPut(ctx context.Context, opts *PutOptions, sess *session, args []string, hasExpiry bool) (any, error) {
	tags, err := parseTags(opts.Tags)
	if err != nil {
		return nil, err
	}
	upd := kv.UpdateEntry{Entry: kv.Entry{
		Category: args[0],
		Name:     args[1],
		Value:    []byte(args[2]),
		Tags:     tags,
	}}
	if hasExpiry {
		ms := opts.Expire.Milliseconds()
		upd.ExpireMs = &ms
	}

	op := kv.OpInsert
	if opts.Replace {
		op = kv.OpReplace
	}
	if err := sess.store.Update(ctx, sess.cfg.Profile, op, []kv.UpdateEntry{upd}); err != nil {
		return nil, err
	}
	return Message{
		Text:   fmt.Sprintf("Stored %s/%s", args[0], args[1]),
		Fields: map[string]any{"operation": op.String(), "category": args[0], "name": args[1]},
	}, nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <category> <name>",
		Short: "Fetch one entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, sess *session) (any, error) {
				entry, err := sess.store.Fetch(ctx, sess.cfg.Profile, args[0], args[1])
				if err != nil {
					return nil, err
				}
				return newEntryView(entry), nil
			})
		},
	}
}

// ScanOptions holds flags shared by scan, count and remove.
type ScanOptions struct {
	*RootOptions
	Filter string
	Offset int64
	Limit  int64
}

func addFilterFlag(cmd *cobra.Command, opts *ScanOptions) {
	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", `tag filter as JSON, e.g. '{"color":"red","~year":{"$gte":"2020"}}'`)
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan [category]",
		Short: "List entries matching a tag filter",
		Long: `List entries of a category (all categories when omitted) matching a tag filter.

Example:
  sealkv scan credential --filter '{"color":"red"}' --limit 10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts.RootOptions, cmd, func(ctx context.Context, sess *session) (any, error) {
				filter, err := parseFilter(opts.Filter)
				if err != nil {
					return nil, err
				}
				var page querysql.Page
				if cmd.Flags().Changed("offset") {
					page.Offset = querysql.Int64(opts.Offset)
				}
				if cmd.Flags().Changed("limit") {
					page.Limit = querysql.Int64(opts.Limit)
				}

				entries, err := sess.store.Scan(ctx, sess.cfg.Profile, categoryArg(args), filter, page)
				if err != nil {
					return nil, err
				}
				list := EntryList{Entries: make([]EntryView, len(entries))}
				for i, e := range entries {
					list.Entries[i] = newEntryView(e)
				}
				return list, nil
			})
		},
	}

	addFilterFlag(cmd, opts)
	cmd.Flags().Int64Var(&opts.Offset, "offset", 0, "skip this many matching entries")
	cmd.Flags().Int64Var(&opts.Limit, "limit", 0, "return at most this many entries")

	return cmd
}

// CountResult is the result of count.
type CountResult struct {
	Count int64 `json:"count"`
}

func (r CountResult) String() string { return fmt.Sprint(r.Count) }

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count [category]",
		Short: "Count entries matching a tag filter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts.RootOptions, cmd, func(ctx context.Context, sess *session) (any, error) {
				filter, err := parseFilter(opts.Filter)
				if err != nil {
					return nil, err
				}
				n, err := sess.store.Count(ctx, sess.cfg.Profile, categoryArg(args), filter)
				if err != nil {
					return nil, err
				}
				return CountResult{Count: n}, nil
			})
		},
	}

	addFilterFlag(cmd, opts)
	return cmd
}

// RemoveOptions holds flags for the remove command.
type RemoveOptions struct {
	ScanOptions
	All bool
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemoveOptions{ScanOptions: ScanOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "remove <category> <name> | remove --all [category]",
		Short: "Remove one entry, or every entry matching a filter",
		Long: `Remove one entry by category and name, or with --all every entry of a
category (all categories when omitted) matching --filter.

Example:
  sealkv remove credential alice
  sealkv remove --all credential --filter '{"color":"red"}'`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts.RootOptions, cmd, func(ctx context.Context, sess *session) (any, error) {
				return runRemove(ctx, opts, sess, args)
			})
		},
	}

	addFilterFlag(cmd, &opts.ScanOptions)
	cmd.Flags().BoolVar(&opts.All, "all", false, "remove every matching entry")

	return cmd
}

func runRemove(ctx context.Context, opts *RemoveOptions, sess *session, args []string) (any, error) {
	if !opts.All {
		if len(args) != 2 {
			return nil, NewExitError(ExitCommandError, "remove needs <category> <name>, or --all")
		}
		if opts.Filter != "" {
			return nil, NewExitError(ExitCommandError, "--filter requires --all")
		}
		if err := sess.store.Update(ctx, sess.cfg.Profile, kv.OpRemove, []kv.UpdateEntry{
			{Entry: kv.Entry{Category: args[0], Name: args[1]}},
		}); err != nil {
			return nil, err
		}
		return Message{Text: fmt.Sprintf("Removed %s/%s", args[0], args[1]), Fields: map[string]any{"removed": 1}}, nil
	}

	if len(args) > 1 {
		return nil, NewExitError(ExitCommandError, "remove --all takes at most a category")
	}
	filter, err := parseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	n, err := sess.store.RemoveAll(ctx, sess.cfg.Profile, categoryArg(args), filter)
	if err != nil {
		return nil, err
	}
	return Message{Text: fmt.Sprintf("Removed %d entries", n), Fields: map[string]any{"removed": n}}, nil
}

func categoryArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
