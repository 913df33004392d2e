package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/0-chirag-s/sitecrafter/api"
	"github.com/0-chirag-s/sitecrafter/internal/mount"
)

const (
	outFlagName     = "out"
	outputFlagName  = "output"
	sessionFlagName = "session"

	defaultSessionID = "build"
)

func newBuildCmd() *cobra.Command {
	var (
		outDir    string
		output    string
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "build [action files...]",
		Short: "Fold action files into a tree and print its mount descriptor",
		Long: `Build receives each action file as one batch, in order, and prints the
resulting mount descriptor. With --out the project is also written to a
directory after every batch that changed the tree; with --s3-bucket it is
published to an S3-compatible object store under export.s3.prefix
(default: the session id).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sb, err := buildSandbox(cmd.Context(), outDir, sessionID)
			if err != nil {
				return err
			}

			env, err := newSessionEnv(sessionID, sb, true)
			if err != nil {
				return err
			}
			defer env.Close()

			recvErr := receiveFiles(cmd.Context(), env.sess, args)
			if err := writeDescriptor(cmd.OutOrStdout(), env.sess.Descriptor(), output); err != nil {
				return err
			}
			return recvErr
		},
	}

	cmd.Flags().StringVar(&outDir, outFlagName, "", "write the project into this directory")
	cmd.Flags().StringVarP(&output, outputFlagName, "o", "json", `descriptor format: "json" or "yaml"`)
	cmd.Flags().StringVar(&sessionID, sessionFlagName, defaultSessionID, "session id used in the journal")
	cmd.Flags().Bool(formatGoFlagName, defaultFormatGo, "gofumpt .go files written with --out")
	bindFlagToConfig(cmd.Flags().Lookup(formatGoFlagName), formatGoConfigKey)
	cmd.Flags().String(s3BucketFlagName, "", "publish the project to this bucket")
	bindFlagToConfig(cmd.Flags().Lookup(s3BucketFlagName), s3BucketConfigKey)

	return cmd
}

func init() {
	rootCmd.AddCommand(newBuildCmd())
}

// buildSandbox assembles the configured sandboxes. Nil means none.
func buildSandbox(ctx context.Context, outDir, sessionID string) (mount.Sandbox, error) {
	opts := mount.Options{FormatGo: viper.GetBool(formatGoConfigKey)}

	var sbs []mount.Sandbox
	if outDir != "" {
		sbs = append(sbs, mount.NewFSSandbox(osfs.New(outDir), opts))
	}
	if bucket := viper.GetString(s3BucketConfigKey); bucket != "" {
		client, err := mount.NewS3Client(ctx, s3Config())
		if err != nil {
			return nil, err
		}
		prefix := viper.GetString(s3PrefixConfigKey)
		if prefix == "" {
			prefix = sessionID
		}
		sbs = append(sbs, mount.NewObjectSandbox(client, bucket, prefix, opts))
	}

	switch len(sbs) {
	case 0:
		return nil, nil
	case 1:
		return sbs[0], nil
	default:
		return mount.Tee(sbs...), nil
	}
}

// writeDescriptor encodes desc to w as JSON or YAML.
func writeDescriptor(w io.Writer, desc *api.Descriptor, format string) error {
	switch strings.ToLower(format) {
	case "", "json":
		data, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode descriptor: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(desc); err != nil {
			return fmt.Errorf("encode descriptor: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
