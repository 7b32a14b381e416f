package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arbor/internal/ast"
	"arbor/internal/parse"
	"arbor/internal/source"
)

var treeCmd = &cobra.Command{
	Use:   "tree [flags] <file>",
	Short: "Print the syntax tree of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		comments, _ := cmd.Flags().GetBool("comments")
		maxText, _ := cmd.Flags().GetInt("max-text")

		fs := source.NewFileSet()
		id, err := fs.Load(args[0])
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		file := fs.Get(id)
		tree, err := parse.NewJava().Parse(cmd.Context(), file)
		if err != nil {
			return &exitError{code: exitFatal, err: fmt.Errorf("parse %s: %w", args[0], err)}
		}
		return ast.Fprint(cmd.OutOrStdout(), tree, tree.Root, ast.PrintOptions{
			MaxText:  maxText,
			Comments: comments,
		})
	},
}

func init() {
	treeCmd.Flags().Bool("comments", false, "include comment nodes")
	treeCmd.Flags().Int("max-text", 40, "truncate node text to this width (0 keeps it whole)")
}
