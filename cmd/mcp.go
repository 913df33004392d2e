package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0-chirag-s/sitecrafter/internal/source"
	"github.com/0-chirag-s/sitecrafter/internal/toolserver"
)

func newMCPCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "mcp [action files...]",
		Short: "Serve the project tree to MCP clients over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newSessionEnv(sessionID, nil, true)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := receiveFiles(cmd.Context(), env.sess, args); err != nil {
				globalLogger.Warn("serving a partially applied tree", "error", err)
			}

			dec, err := source.NewDecoder(viper.GetString(selectorConfigKey))
			if err != nil {
				return err
			}
			srv, err := toolserver.New(env.sess, dec)
			if err != nil {
				return err
			}
			return srv.ServeStdio()
		},
	}

	cmd.Flags().StringVar(&sessionID, sessionFlagName, "mcp", "session id used in the journal")

	return cmd
}

func init() {
	rootCmd.AddCommand(newMCPCmd())
}
