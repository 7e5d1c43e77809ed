package cli

import (
	"errors"
	"fmt"

	"casedata/internal/document"

	"github.com/spf13/cobra"
)

func newMergeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <target> <patch>...",
		Short: "Deep-merge patch documents into a target document",
		Long: `Deep-merge one or more patch documents into the target, in order.

Null values in a patch remove keys, arrays are appended to arrays, and an
array merged over an object is a type conflict.`,
		Example: `  # Merge one patch
  casedatactl merge case.json update.json

  # Merge several patches read in order, target from stdin
  cat case.json | casedatactl merge - a.json b.json --pretty`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			for _, path := range args[1:] {
				patch, err := readDocument(cmd, path)
				if err != nil {
					return err
				}
				if result, err = document.Merge(result, patch); err != nil {
					return fmt.Errorf("merging %s: %w", path, err)
				}
			}
			return writeDocument(cmd, opts, result)
		},
	}
}

func newPatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "patch <target> <operations>",
		Short: "Apply JSON Patch (RFC 6902) operations to a document",
		Example: `  casedatactl patch case.json ops.json`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			ops, err := document.DecodeOperations(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}
			result, err := document.Patch(target, ops)
			if err != nil {
				return err
			}
			return writeDocument(cmd, opts, result)
		},
	}
}

func newDiffCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "diff <from> <to>",
		Short:   "Print the JSON Patch operations that turn one document into another",
		Example: `  casedatactl diff v1.json v2.json > ops.json`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" && args[1] == "-" {
				return errors.New("only one document can be read from stdin")
			}
			from, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			to, err := readDocument(cmd, args[1])
			if err != nil {
				return err
			}
			ops, err := document.Diff(from, to)
			if err != nil {
				return err
			}
			return writeDocument(cmd, opts, operationsNode(ops))
		},
	}
}

func newFmtCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fmt <file>",
		Short: "Reformat a document, keeping key order and number literals",
		Example: `  casedatactl fmt case.json --pretty`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := readDocument(cmd, args[0])
			if err != nil {
				return err
			}
			return writeDocument(cmd, opts, n)
		},
	}
}

// operationsNode renders ops as a document so diff output shares the
// serializer's formatting.
func operationsNode(ops []document.Operation) *document.Node {
	items := make([]*document.Node, 0, len(ops))
	for _, op := range ops {
		fields := []document.Field{
			document.F("op", document.String(op.Op)),
			document.F("path", document.String(op.Path)),
		}
		if op.HasFrom() {
			fields = append(fields, document.F("from", document.String(op.From)))
		}
		if op.Value != nil {
			fields = append(fields, document.F("value", op.Value))
		}
		items = append(items, document.Object(fields...))
	}
	return document.Array(items...)
}
