package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/0-chirag-s/sitecrafter/internal/metrics"
	"github.com/0-chirag-s/sitecrafter/internal/nfsmount"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		mountPoint string
		sessionID  string
	)

	cmd := &cobra.Command{
		Use:   "serve [action files...]",
		Short: "Export the project tree over NFS",
		Long: `Serve folds the given action files into a tree and exports it over NFS.
The export root also holds _mount.json, the current mount descriptor.
With --writable, writes to existing files replace their content and
remount; files are never created or removed through the export.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := newSessionEnv(sessionID, nil, true)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := receiveFiles(ctx, env.sess, args); err != nil {
				globalLogger.Warn("serving a partially applied tree", "error", err)
			}

			writable := viper.GetBool(writableConfigKey)
			tfs := nfsmount.NewTreeFS(env.sess.Tree())
			if writable {
				tfs.SetEditor(func(path string, content []byte) error {
					return env.sess.Edit(context.WithoutCancel(ctx), path, string(content))
				})
			}

			srv, err := nfsmount.NewServer(tfs, addr, globalLogger)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "NFS export on port %d (writable=%v)\n", srv.Port(), writable)

			if addr := viper.GetString(metricsAddrConfigKey); addr != "" {
				ms, err := startMetricsServer(addr)
				if err != nil {
					return err
				}
				defer func() { _ = ms.Close() }()
				fmt.Fprintf(out, "Metrics on http://%s/metrics\n", ms.Addr)
			}

			if mountPoint != "" {
				if err := nfsmount.Mount(srv.Port(), mountPoint, writable); err != nil {
					return err
				}
				defer func() {
					if err := nfsmount.Unmount(mountPoint); err != nil {
						globalLogger.Error("unmount failed", "mountpoint", mountPoint, "error", err)
					}
				}()
				fmt.Fprintf(out, "Mounted at %s\n", mountPoint)
			}

			select {
			case <-ctx.Done():
			case <-srv.Done():
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "listen address")
	cmd.Flags().StringVar(&mountPoint, "mount", "", "mount the export here (needs sudo)")
	cmd.Flags().StringVar(&sessionID, sessionFlagName, "serve", "session id used in the journal")
	cmd.Flags().Bool(writableFlagName, defaultWritable, "accept writes to existing files")
	bindFlagToConfig(cmd.Flags().Lookup(writableFlagName), writableConfigKey)
	cmd.Flags().String(metricsAddrFlagName, "", "serve Prometheus metrics on this address")
	bindFlagToConfig(cmd.Flags().Lookup(metricsAddrFlagName), metricsAddrConfigKey)

	return cmd
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}

// startMetricsServer serves /metrics on addr in the background. The
// returned server's Addr is the bound address.
func startMetricsServer(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv, nil
}
