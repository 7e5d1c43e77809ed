// Package cli provides the casedatactl command-line interface, which runs
// the document engine on local files.
package cli

import (
	"fmt"
	"io"
	"os"

	"casedata/internal/document"

	"github.com/spf13/cobra"
)

// Version information (set at build time).
var Version = "0.1.0"

type options struct {
	indent string
	pretty bool
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "casedatactl",
		Short: "Merge, patch and diff case data documents",
		Long: `casedatactl runs the case data engine on local JSON files.

Key order and number literals are preserved. Use "-" to read a document
from standard input.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.pretty, "pretty", "p", false, "Indent the output")
	rootCmd.PersistentFlags().StringVar(&opts.indent, "indent", "  ", "Indent used with --pretty")

	rootCmd.AddCommand(
		newMergeCommand(opts),
		newPatchCommand(opts),
		newDiffCommand(opts),
		newFmtCommand(opts),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func readDocument(cmd *cobra.Command, path string) (*document.Node, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	n, err := document.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

func writeDocument(cmd *cobra.Command, opts *options, n *document.Node) error {
	var out []byte
	if opts.pretty {
		out = document.SerializeIndent(n, "", opts.indent)
	} else {
		out = document.Serialize(n)
	}
	out = append(out, '\n')
	_, err := cmd.OutOrStdout().Write(out)
	return err
}
