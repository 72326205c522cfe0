package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/headsync/internal/errors"
	"github.com/vango-dev/headsync/pkg/headsync"
	"github.com/vango-dev/headsync/pkg/headtag"
	"github.com/vango-dev/headsync/pkg/registry"
	"github.com/vango-dev/headsync/pkg/render"
	"github.com/vango-dev/headsync/pkg/surface"
)

type renderOptions struct {
	rules    string
	pretty   bool
	document bool
	only     string
}

func renderCmd() *cobra.Command {
	var o renderOptions

	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Reconcile a declarations file and print the markup",
		Long: `Read a YAML or JSON list of contributions, register them in order
and print the reconciled head markup.

Each list item maps tag types to attribute maps:

  - title: [{text: Home}]
    meta:  [{name: description, content: Welcome}]
  - title: [{text: About}]

Later items take precedence over earlier ones for the same tag key.

Examples:
  headsync render head.yaml
  headsync render head.yaml --pretty
  headsync render head.yaml --type htmlAttributes
  headsync render head.yaml --document`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd.OutOrStdout(), args[0], o)
		},
	}

	cmd.Flags().StringVarP(&o.rules, "rules", "r", "", "YAML rule table merged over the defaults")
	cmd.Flags().BoolVarP(&o.pretty, "pretty", "p", false, "Put one element per line")
	cmd.Flags().BoolVarP(&o.document, "document", "d", false, "Print a complete HTML document")
	cmd.Flags().StringVarP(&o.only, "type", "t", "", "Print only one tag type")

	return cmd
}

// readDeclarations parses a declarations file. YAML is a superset of JSON so
// one decoder serves both.
func readDeclarations(path string) ([]registry.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E400").WithDetail(path).Wrap(err)
	}
	var docs []registry.Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, errors.New("E400").
			WithDetailf("%s: %v", path, err).
			WithSuggestion("The file must be a list of maps from tag type to attribute maps")
	}
	return docs, nil
}

func runRender(ctx context.Context, w io.Writer, path string, o renderOptions) error {
	docs, err := readDeclarations(path)
	if err != nil {
		return err
	}

	table := headtag.DefaultTable()
	if o.rules != "" {
		if table, err = headtag.LoadTableFile(o.rules); err != nil {
			return err
		}
	}

	out := surface.NewString(table, render.RendererConfig{Pretty: o.pretty})
	m, err := headsync.New(
		headsync.WithDefer(false),
		headsync.WithRules(table),
		headsync.WithSurface(out),
		headsync.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return err
	}
	defer m.Close()

	for i, doc := range docs {
		tags, err := doc.Tags(table)
		if err != nil {
			return errors.New("E401").WithDetailf("%s: item %d", path, i).Wrap(err)
		}
		if _, err := m.Register(tags); err != nil {
			return err
		}
	}
	if err := m.Flush(ctx); err != nil {
		return err
	}

	markup := out.Markup()
	switch {
	case o.only != "":
		if _, ok := table.Rule(headtag.Type(o.only)); !ok {
			return errors.New("E401").WithDetailf("unknown tag type %q", o.only)
		}
		_, err = fmt.Fprintln(w, markup.Type(headtag.Type(o.only)))
	case o.document:
		_, err = fmt.Fprintln(w, markup.Document(""))
	default:
		_, err = fmt.Fprintln(w, markup.Head())
	}
	return err
}
