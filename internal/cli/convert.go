package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nemeshnorbert/reveal/internal/adapters/cache"
	"github.com/nemeshnorbert/reveal/internal/adapters/sqlite"
	"github.com/nemeshnorbert/reveal/internal/config"
	"github.com/nemeshnorbert/reveal/internal/domain"
	"github.com/nemeshnorbert/reveal/internal/rates"
)

func newConvertCmd() *cobra.Command {
	var (
		date  string
		base  string
		quote string
	)

	cmd := &cobra.Command{
		Use:   "convert <path>",
		Short: "Resolve one historical cross rate via the store and the configured provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := domain.ParseDate(date); err != nil {
				return fmt.Errorf("invalid date %q: %w", date, err)
			}

			store, err := sqlite.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			memo, err := cache.NewRateMemo(cache.DefaultMemoCapacity)
			if err != nil {
				return err
			}
			defer memo.Close()

			credentials, err := config.Credentials(cfg.API.Provider)
			if err != nil {
				return err
			}
			provider, err := rates.NewProvider(cfg.API.Provider, credentials, cfg.API.ReadRetries)
			if err != nil {
				return err
			}

			resolver := rates.NewResolver(store, memo, provider)
			crossRates, err := resolver.Convert(cmd.Context(), []domain.Bid{{Date: date, Base: base, Quote: quote}})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%s = %v\n", date, base, quote, crossRates[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "date of the rate, format "+domain.DateLayout)
	cmd.Flags().StringVar(&base, "base", "", "base currency code")
	cmd.Flags().StringVar(&quote, "quote", "", "quote currency code")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("quote")
	return cmd
}
