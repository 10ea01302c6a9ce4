package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/sealkv/internal/kv"
)

// TokenResult is a computed lock token.
type TokenResult struct {
	ProfileID int64  `json:"profile_id"`
	Category  string `json:"category"`
	Name      string `json:"name"`
	Token     int64  `json:"token"`
	Domain    string `json:"domain"`
}

func (r TokenResult) String() string { return strconv.FormatInt(r.Token, 10) }

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <profile-id> <category> <name>",
		Short: "Print the lock token for a record",
		Long: `Print the lock token writers take for a (profile, category, name) record.
On PostgreSQL the same value is used as the advisory transaction lock key.

Example:
  sealkv token 1 credential alice`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(rootOpts, cmd, func(context.Context) (any, error) {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return nil, kv.NewError(kv.ErrCodeInput, fmt.Sprintf("invalid profile id %q", args[0]))
				}
				return TokenResult{
					ProfileID: id,
					Category:  args[1],
					Name:      args[2],
					Token:     kv.LockToken(kv.ProfileID(id), []byte(args[1]), []byte(args[2])),
					Domain:    kv.DomainLockToken,
				}, nil
			})
		},
	}
}
