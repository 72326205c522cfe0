package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/headsync/pkg/headtag"
)

func rulesCmd() *cobra.Command {
	var rules string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective tag rule table",
		Long: `Print the rule table as YAML. With --rules the file is merged over
the built-in rules first, so the output shows exactly what the manager
will use. The output can be fed back with --rules unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(cmd.OutOrStdout(), rules)
		},
	}

	cmd.Flags().StringVarP(&rules, "rules", "r", "", "YAML rule table merged over the defaults")

	return cmd
}

func runRules(w io.Writer, path string) error {
	table := headtag.DefaultTable()
	if path != "" {
		var err error
		if table, err = headtag.LoadTableFile(path); err != nil {
			return err
		}
	}
	return table.WriteYAML(w)
}
