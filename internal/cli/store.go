package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nemeshnorbert/reveal/internal/adapters/sqlite"
	"github.com/nemeshnorbert/reveal/internal/rates"
)

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <path>",
		Short: "Create an empty rate store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sqlite.Create(args[0])
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Delete a rate store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sqlite.Delete(args[0])
		},
	}
}

func newSetupCmd() *cobra.Command {
	var src string

	cmd := &cobra.Command{
		Use:   "setup <path>",
		Short: "Create a ready-to-use store, optionally seeded from another store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sqlite.Create(args[0]); err != nil {
				return err
			}
			if src == "" {
				return nil
			}
			return failOnBadReports(rates.Merge(cmd.Context(), args[0], []string{src}))
		},
	}
	cmd.Flags().StringVar(&src, "src", "", "store to seed data from")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var srcs []string

	cmd := &cobra.Command{
		Use:   "merge <path>",
		Short: "Merge rates from one or more source stores into an existing store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return failOnBadReports(rates.Merge(cmd.Context(), args[0], srcs))
		},
	}
	cmd.Flags().StringArrayVar(&srcs, "src", nil, "source store path (repeatable)")
	_ = cmd.MarkFlagRequired("src")
	return cmd
}

func failOnBadReports(reports []rates.Report) error {
	failed := 0
	for _, report := range reports {
		if report.Error {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d merges failed, see logs", failed, len(reports))
	}
	return nil
}
