package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"go-careerwatch/internal/apiconfig"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func configsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configs",
		Short: "Inspect or invalidate stored API configurations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored API configurations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(cmd, func(store *apiconfig.Store) error {
					configs, err := store.List(cmd.Context())
					if err != nil {
						return err
					}
					ids := make([]string, 0, len(configs))
					for id := range configs {
						ids = append(ids, id)
					}
					slices.Sort(ids)

					t := table.NewWriter()
					t.SetOutputMirror(os.Stdout)
					t.SetStyle(table.StyleLight)
					t.AppendHeader(table.Row{"Company", "Method", "Endpoint", "Pagination", "Validated", "Last Verified"})
					for _, id := range ids {
						c := configs[id]
						verified := "-"
						if !c.LastVerified.IsZero() {
							verified = c.LastVerified.Format("2006-01-02 15:04")
						}
						t.AppendRow(table.Row{id, c.Method, c.Endpoint, c.Pagination.Kind, c.Validated, verified})
					}
					t.Render()
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <company>",
			Short: "Print one stored configuration as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(store *apiconfig.Store) error {
					cfg, ok := store.Get(cmd.Context(), args[0])
					if !ok {
						return fmt.Errorf("no configuration stored for %q", args[0])
					}
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(cfg)
				})
			},
		},
		&cobra.Command{
			Use:   "invalidate <company>",
			Short: "Delete a stored configuration so the next run rediscovers it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(store *apiconfig.Store) error {
					if err := store.Invalidate(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Printf("🗑️ Invalidated %q\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func withStore(cmd *cobra.Command, fn func(*apiconfig.Store) error) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(apiconfig.NewStore(a.blobs, a.logger))
}
