package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ProfileList is the result of profile list.
type ProfileList struct {
	Profiles []string `json:"profiles"`
	Default  string   `json:"default"`
}

func (l ProfileList) String() string {
	lines := make([]string, len(l.Profiles))
	for i, p := range l.Profiles {
		if p == l.Default {
			lines[i] = p + " (default)"
			continue
		}
		lines[i] = p
	}
	return strings.Join(lines, "\n")
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage profiles",
		Long: `Manage profiles. Each profile is an independent key scope: entries of one
profile cannot be read or matched through another.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, sess *session) (any, error) {
				names, err := sess.store.ListProfiles(ctx)
				if err != nil {
					return nil, err
				}
				return ProfileList{Profiles: names, Default: sess.store.DefaultProfile()}, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create [name]",
		Short: "Create a profile (random UUID name when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, sess *session) (any, error) {
				name, err := sess.store.CreateProfile(ctx, categoryArg(args))
				if err != nil {
					return nil, err
				}
				return Message{Text: fmt.Sprintf("Created profile %q", name), Fields: map[string]any{"profile": name}}, nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a profile and all of its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, cmd, func(ctx context.Context, sess *session) (any, error) {
				if err := sess.store.RemoveProfile(ctx, args[0]); err != nil {
					return nil, err
				}
				return Message{Text: fmt.Sprintf("Removed profile %q", args[0]), Fields: map[string]any{"profile": args[0]}}, nil
			})
		},
	})

	return cmd
}
