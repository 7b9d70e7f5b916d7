package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"go-careerwatch/internal/apiclient"
	"go-careerwatch/internal/apiconfig"
	"go-careerwatch/internal/config"
	"go-careerwatch/internal/discovery"
	"go-careerwatch/internal/pipeline"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const sampleSize = 3

func discoverCommand() *cobra.Command {
	var (
		name string
		test bool
	)
	cmd := &cobra.Command{
		Use:   "discover <career-url>",
		Short: "Discover and save the listing API behind a career page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			careerURL := args[0]
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			id := config.Slugify(name)
			fmt.Printf("🔍 API discovery for %s (%s)\n", name, careerURL)

			d := pipeline.NewDiscoverer(a.cfg, a.renderer(), a.logger)
			cfg, _, err := d.Discover(ctx, id, careerURL)
			if err != nil {
				if errors.Is(err, discovery.ErrNoJSONTraffic) || errors.Is(err, discovery.ErrNoConfidentMatch) {
					fmt.Println("💡 The site might not have a public API, or it needs authentication. The run will fall back to HTML extraction.")
				}
				return fmt.Errorf("failed to discover API: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendRows([]table.Row{
				{"Endpoint", cfg.Endpoint},
				{"Method", cfg.Method},
				{"Headers", strings.Join(headerNames(cfg.Headers), ", ")},
				{"Items", cfg.Fields.ItemsPath},
				{"Pagination", cfg.Pagination.Kind},
				{"Confidence", cfg.Confidence},
			})
			t.Render()

			if test {
				client := pipeline.NewAPIClient(a.cfg, a.logger)
				jobs, err := client.Fetch(ctx, cfg, apiclient.Params{
					Company:  name,
					Keywords: a.cfg.Keywords,
					Location: first(a.cfg.Locations),
				})
				if err != nil {
					return fmt.Errorf("test call failed, configuration not saved: %w", err)
				}
				fmt.Printf("✅ Test successful! Found %d jobs\n", len(jobs))
				sample := table.NewWriter()
				sample.SetOutputMirror(os.Stdout)
				sample.SetStyle(table.StyleLight)
				sample.AppendHeader(table.Row{"Title", "Location", "URL"})
				for _, j := range jobs[:min(sampleSize, len(jobs))] {
					sample.AppendRow(table.Row{j.Title, j.Location, j.URL})
				}
				sample.Render()
				cfg.Validated = true
			}

			store := apiconfig.NewStore(a.blobs, a.logger)
			if err := store.Put(ctx, id, cfg); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			fmt.Printf("💾 Saved configuration as %q\n", id)
			fmt.Printf("📌 Add to %s:\n  - name: %q\n    url: %q\n", cfgPath, name, careerURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "company name")
	cmd.Flags().BoolVar(&test, "test", false, "replay the discovered API once and print sample jobs")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func headerNames(h map[string]string) []string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
