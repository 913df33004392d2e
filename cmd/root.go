// Package cmd provides the sitecrafter command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/0-chirag-s/sitecrafter/internal/journal"
	"github.com/0-chirag-s/sitecrafter/internal/mount"
	"github.com/0-chirag-s/sitecrafter/internal/reconcile"
	"github.com/0-chirag-s/sitecrafter/internal/session"
	"github.com/0-chirag-s/sitecrafter/internal/source"
)

var (
	verboseFlag bool
	logFileFlag string
)

const rootLongDescription = `Sitecrafter folds a stream of build actions from a generation service
into a project file tree and keeps a sandbox mounted with the latest tree.

Action files are JSON documents; the actions are picked out with a JSONPath
selector (default "$.actions[*]"). Each file is received as one batch, in
the order given.`

var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "sitecrafter",
		Short:         "Fold build actions into a mountable project tree",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configureLogger(logFileFlag, verboseFlag)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func init() {
	configureRootFlags(rootCmd)
}

func configureRootFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()

	pf.BoolVarP(&verboseFlag, verboseFlagName, "v", false, "log at debug level")
	pf.StringVar(&logFileFlag, logFileFlagName, "", "log file (default from log.filename)")

	pf.String(sweepFlagName, string(reconcile.SweepAll), `completion sweep: "all" or "folded"`)
	bindFlagToConfig(pf.Lookup(sweepFlagName), sweepConfigKey)

	pf.String(selectorFlagName, source.DefaultSelector, "JSONPath selecting actions in each input file")
	bindFlagToConfig(pf.Lookup(selectorFlagName), selectorConfigKey)

	pf.String(journalFlagName, "", "SQLite journal recording every received batch")
	bindFlagToConfig(pf.Lookup(journalFlagName), journalConfigKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// sessionEnv is a session plus whatever it holds open.
type sessionEnv struct {
	sess    *session.Session
	journal *journal.Journal
}

func (e *sessionEnv) Close() {
	e.sess.Close()
	if e.journal != nil {
		_ = e.journal.Close()
	}
}

// newSessionEnv builds a session from the configuration. record controls
// whether the configured journal, if any, records incoming batches.
func newSessionEnv(id string, sb mount.Sandbox, record bool) (*sessionEnv, error) {
	sweep, err := sweepMode()
	if err != nil {
		return nil, err
	}
	opts := []session.Option{
		session.WithSweep(sweep),
		session.WithLogger(globalLogger),
	}
	if sb != nil {
		opts = append(opts, session.WithSandbox(sb))
	}

	env := &sessionEnv{}
	if p := viper.GetString(journalConfigKey); p != "" && record {
		j, err := journal.Open(p)
		if err != nil {
			return nil, err
		}
		env.journal = j
		opts = append(opts, session.WithRecorder(j))
	}
	env.sess = session.New(id, opts...)
	return env, nil
}

// receiveFiles decodes each file and feeds it to sess as one batch, in order.
// Kind conflicts are logged and collected; decoding errors stop the run.
func receiveFiles(ctx context.Context, sess *session.Session, files []string) error {
	dec, err := source.NewDecoder(viper.GetString(selectorConfigKey))
	if err != nil {
		return err
	}
	batches, err := dec.LoadAll(ctx, files)
	if err != nil {
		return err
	}

	var firstErr error
	for i, batch := range batches {
		res, err := sess.Receive(ctx, batch)
		globalLogger.Info("received batch",
			"file", files[i],
			"actions", len(batch),
			"created", res.Created,
			"updated", res.Updated,
		)
		if err != nil {
			globalLogger.Warn("batch not fully applied", "file", files[i], "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", files[i], err)
			}
		}
	}
	return firstErr
}
