package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	familyservice "heritage/internal/family/service"
	memberservice "heritage/internal/member/service"
	"heritage/internal/member/store/persistent"
	"heritage/internal/member/store/seed"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Inspect a seed roster",
	}
	cmd.PersistentFlags().String("file", "", "seed YAML file (defaults to the embedded roster)")
	cmd.AddCommand(newSeedCheckCmd(), newSeedRelateCmd())
	return cmd
}

type checkReport struct {
	Members     int   `json:"members"`
	Generations int   `json:"generations"`
	Diagnostics []any `json:"diagnostics"`
}

func newSeedCheckCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Build the family graph from a seed roster and report inconsistencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			family, err := offlineFamily(cmd)
			if err != nil {
				return err
			}
			g, err := family.Graph(cmd.Context())
			if err != nil {
				return err
			}

			report := checkReport{Members: g.Len(), Diagnostics: []any{}}
			for _, n := range g.Nodes() {
				if gen, err := g.Generation(n.ID); err == nil {
					report.Generations = max(report.Generations, gen)
				}
			}
			for _, d := range g.Diagnostics() {
				report.Diagnostics = append(report.Diagnostics, d)
			}
			return writeReport(cmd.OutOrStdout(), report, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newSeedRelateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relate FROM TO",
		Short: "Print how TO is related to FROM (ids or slugs)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, err := offlineFamily(cmd)
			if err != nil {
				return err
			}
			label, err := family.FindRelationshipByRef(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), label.Text)
			return nil
		},
	}
}

// offlineFamily runs the family engine over the seed alone, with edits kept in
// a throwaway in-memory store.
func offlineFamily(cmd *cobra.Command) (*familyservice.Service, error) {
	path, _ := cmd.Flags().GetString("file")
	var (
		seeds *seed.Store
		err   error
	)
	if path == "" {
		seeds, err = seed.Default()
	} else {
		seeds, err = seed.LoadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	members := memberservice.New(persistent.NewInMemory(), seeds)
	return familyservice.New(members), nil
}

func writeReport(w io.Writer, r checkReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "members:     %d\n", r.Members)
	fmt.Fprintf(w, "generations: %d\n", r.Generations)
	if len(r.Diagnostics) == 0 {
		fmt.Fprintln(w, "diagnostics: none")
		return nil
	}
	fmt.Fprintf(w, "diagnostics: %d\n", len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		b, _ := json.Marshal(d)
		fmt.Fprintf(w, "  %s\n", b)
	}
	return nil
}
