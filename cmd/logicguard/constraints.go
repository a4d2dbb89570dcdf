package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/logicguard/internal/profile"
	"github.com/dshills/logicguard/internal/reasoner"
)

func newConstraintsCmd(g *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "constraints",
		Short: "List the constraints of the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConstraints(g, format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json")
	return cmd
}

func runConstraints(g *globalFlags, format string, w io.Writer) error {
	if format != "text" && format != "json" {
		return withCode(exitCodeBadInput, fmt.Errorf("unknown format %q", format))
	}
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	prof, err := profile.Load(cfg.Profile)
	if err != nil {
		return withCode(exitCodeBadInput, err)
	}
	cat, err := prof.Catalog(cfg.CatalogFile)
	if err != nil {
		return withCode(exitCodeBadInput, err)
	}
	info := reasoner.New(cat).ConstraintsSummary()

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Profile     string                    `json:"profile"`
			Catalog     string                    `json:"catalog"`
			Constraints []reasoner.ConstraintInfo `json:"constraints"`
		}{prof.Name, cat.Name(), info})
	}

	fmt.Fprintf(w, "Profile %s, catalog %s (%d constraints)\n\n", prof.Name, cat.Name(), len(info))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tSEVERITY\tEXPRESSION\tAPPLIES TO")
	for _, c := range info {
		applies := "all"
		if len(c.AppliesTo) > 0 {
			applies = strings.Join(c.AppliesTo, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Category, c.Severity, c.Expression, applies)
	}
	return tw.Flush()
}
