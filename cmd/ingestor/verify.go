package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samirrijal/housingetl/internal/bootstrap"
	"github.com/samirrijal/housingetl/internal/core/usecases"
)

func createVerifyCmd() *cobra.Command {
	var sinks []string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the configured sinks hold a sane copy of the output tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := bootstrap.NewRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(sinks) == 0 {
				sinks = cfg.Pipeline.Sinks
			}
			failed := false
			for _, name := range sinks {
				inspector, err := rt.Inspector(name)
				if err != nil {
					return err
				}
				report, err := usecases.NewVerifyService(inspector, cfg.Pipeline.Dataset, cfg.Pipeline.Tourism.Enabled).
					Verify(ctx, name)
				if err != nil {
					return fmt.Errorf("verify %s: %w", name, err)
				}
				for _, c := range report.Checks {
					mark := "ok  "
					if !c.Passed {
						mark = "FAIL"
						failed = true
					}
					if c.Detail != "" {
						fmt.Printf("%s %s: %s (%s)\n", mark, name, c.Name, c.Detail)
					} else {
						fmt.Printf("%s %s: %s\n", mark, name, c.Name)
					}
				}
			}
			if failed {
				return errors.New("verification failed")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&sinks, "sink", nil, "sinks to verify (default: all configured)")
	return cmd
}
