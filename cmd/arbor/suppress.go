package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"arbor/internal/parse"
	"arbor/internal/source"
	"arbor/internal/suppress"
)

var suppressCmd = &cobra.Command{
	Use:   "suppress --position LINE:COLUMN [flags] <file>",
	Short: "Print path expressions of the nodes at a position",
	Long: `Print the path expressions that select the syntax nodes starting at
LINE:COLUMN of file, most specific first. Columns count tabs expanded to
--tab-width. Any of the printed expressions can be used as the query of a
suppression rule.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuppress,
}

func init() {
	suppressCmd.Flags().String("position", "", "node position as line:column (required)")
	suppressCmd.Flags().Int("tab-width", source.DefaultTabWidth, "tab width used for columns")
	suppressCmd.Flags().String("charset", "UTF-8", "file charset")
	_ = suppressCmd.MarkFlagRequired("position")
}

func runSuppress(cmd *cobra.Command, args []string) error {
	pos, _ := cmd.Flags().GetString("position")
	tabWidth, _ := cmd.Flags().GetInt("tab-width")
	charset, _ := cmd.Flags().GetString("charset")
	if tabWidth <= 0 {
		return &exitError{code: exitFatal, err: fmt.Errorf("--tab-width must be positive, got %d", tabWidth)}
	}

	fs := source.NewFileSet()
	if err := fs.SetCharset(charset); err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	out, err := suppress.Generate(cmd.Context(), parse.NewJava(), fs, args[0], pos, tabWidth)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	if out != "" {
		fmt.Fprint(cmd.OutOrStdout(), out+suppress.LineSeparator)
	}
	return nil
}
