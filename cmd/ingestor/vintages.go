package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samirrijal/housingetl/internal/core/usecases"
	"github.com/samirrijal/housingetl/internal/registry"
)

func createVintagesCmd() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "vintages",
		Short: "List the configured vintages and their schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Load(cfg.Pipeline.RegistryPath)
			if err != nil {
				return err
			}
			infos := usecases.NewVintageService(reg).List(collection)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VINTAGE\tCOORDINATES\tPATTERNS\tFIELDS")
			for _, v := range infos {
				fmt.Fprintf(w, "%s\t%s,%s\t%d\t%s\n",
					v.Key, v.CoordinateOrder[0], v.CoordinateOrder[1], v.Patterns, strings.Join(v.Fields, ", "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "only list this collection")
	return cmd
}
