package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0-chirag-s/sitecrafter/api"
	"github.com/0-chirag-s/sitecrafter/internal/journal"
	"github.com/0-chirag-s/sitecrafter/internal/session"
)

var errNoJournal = errors.New("no journal configured (set --journal or journal.path)")

func newReplayCmd() *cobra.Command {
	var (
		list   bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "replay [session]",
		Short: "Rebuild a session's tree from the journal",
		Long: `Rebuild a session's tree from the journal.

Received batches and file edits (from serve --writable or the mcp
edit_file tool) are replayed in the order they were recorded.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString(journalConfigKey)
			if path == "" {
				return errNoJournal
			}
			j, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			if list || len(args) == 0 {
				sessions, err := j.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintln(cmd.OutOrStdout(), s)
				}
				return nil
			}

			// Replayed batches are not recorded again.
			env, err := newSessionEnv(args[0], nil, false)
			if err != nil {
				return err
			}
			defer env.Close()

			replayErr := replaySession(cmd.Context(), j, env.sess)
			if err := writeDescriptor(cmd.OutOrStdout(), env.sess.Descriptor(), output); err != nil {
				return err
			}
			return replayErr
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list recorded sessions")
	cmd.Flags().StringVarP(&output, outputFlagName, "o", "json", `descriptor format: "json" or "yaml"`)

	return cmd
}

func init() {
	rootCmd.AddCommand(newReplayCmd())
}

// replaySession feeds every batch journaled for sess.ID back through
// Receive in append order. Batches are read out before any is received
// because the journal holds its only connection while streaming.
func replaySession(ctx context.Context, j *journal.Journal, sess *session.Session) error {
	var batches [][]api.Action
	err := j.Stream(ctx, sess.ID, func(_ int64, batch []api.Action) error {
		batches = append(batches, batch)
		return nil
	})
	if err != nil {
		return err
	}
	if len(batches) == 0 {
		return fmt.Errorf("session %q: nothing recorded", sess.ID)
	}

	var errs []error
	for _, batch := range batches {
		if _, err := sess.Receive(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
