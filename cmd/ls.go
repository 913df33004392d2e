package cmd

import (
	"bytes"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/0-chirag-s/sitecrafter/internal/tree"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [action files...]",
		Short: "Fold action files into a tree and list its nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newSessionEnv(defaultSessionID, nil, false)
			if err != nil {
				return err
			}
			defer env.Close()

			recvErr := receiveFiles(cmd.Context(), env.sess, args)
			if err := printTree(cmd.OutOrStdout(), env.sess.Tree()); err != nil {
				return err
			}
			return recvErr
		},
	}
}

func init() {
	rootCmd.AddCommand(newLsCmd())
}

func printTree(w io.Writer, t tree.Reader) error {
	table, err := renderTreeTable(t)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, table)
	return err
}

// renderTreeTable lists every node in tree order with its kind and size.
func renderTreeTable(t tree.Reader) (string, error) {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Kind", "Bytes"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	files, bytesTotal := 0, 0
	err := t.Walk(func(n *tree.Node) error {
		if n.IsDir() {
			table.Append([]string{n.Path + "/", n.Kind.String(), ""})
			return nil
		}
		files++
		bytesTotal += len(n.Content)
		table.Append([]string{n.Path, n.Kind.String(), fmt.Sprintf("%d", len(n.Content))})
		return nil
	})
	if err != nil {
		return "", err
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", files),
		"",
		fmt.Sprintf("%d", bytesTotal),
	})
	table.Render()

	return tableBuffer.String(), nil
}
