package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/rate-engine/factory"
	"github.com/warp/rate-engine/rates"
)

var quoteFlags struct {
	profile   string
	date      string
	base      string
	sell      string
	member    string
	targeting bool
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price one date from a profile file",
	Long: `Runs the pricing stack for one date without a server or a PMS.
With --base the sell rate is computed; with --sell the base rate that produces it.`,
	RunE: runQuote,
}

func init() {
	f := quoteCmd.Flags()
	f.StringVar(&quoteFlags.profile, "profile", "", "calculator profile JSON file (default profile when empty)")
	f.StringVar(&quoteFlags.date, "date", "", "stay date, YYYY-MM-DD")
	f.StringVar(&quoteFlags.base, "base", "", "base rate to price")
	f.StringVar(&quoteFlags.sell, "sell", "", "target sell rate to invert")
	f.StringVar(&quoteFlags.member, "member", "0", "member discount percent")
	f.BoolVar(&quoteFlags.targeting, "targeting", false, "include mobile and country discounts")
	_ = quoteCmd.MarkFlagRequired("date")
	quoteCmd.MarkFlagsMutuallyExclusive("base", "sell")
	quoteCmd.MarkFlagsOneRequired("base", "sell")
}

func runQuote(cmd *cobra.Command, args []string) error {
	date, err := rates.ParseDate(quoteFlags.date)
	if err != nil {
		return err
	}
	member, err := decimal.NewFromString(quoteFlags.member)
	if err != nil {
		return fmt.Errorf("invalid --member: %w", err)
	}

	profile := rates.DefaultProfile()
	if quoteFlags.profile != "" {
		raw, err := os.ReadFile(quoteFlags.profile)
		if err != nil {
			return err
		}
		if profile, err = factory.NewProfileFactory().ParseProfile(string(raw)); err != nil {
			return err
		}
	}
	opts := rates.Options{IncludeTargeting: quoteFlags.targeting}

	var q rates.Quote
	if quoteFlags.sell != "" {
		sell, err := decimal.NewFromString(quoteFlags.sell)
		if err != nil {
			return fmt.Errorf("invalid --sell: %w", err)
		}
		if q, err = rates.QuoteInverse(sell, member, profile, date, opts); err != nil {
			return err
		}
	} else {
		base, err := decimal.NewFromString(quoteFlags.base)
		if err != nil {
			return fmt.Errorf("invalid --base: %w", err)
		}
		q = rates.QuoteForward(base, member, profile, date, opts)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(quoteOutput(q))
}

type stepOutput struct {
	Kind       rates.StepKind  `json:"kind"`
	CampaignID string          `json:"campaign_id,omitempty"`
	Percent    decimal.Decimal `json:"percent"`
	Factor     decimal.Decimal `json:"factor"`
}

func quoteOutput(q rates.Quote) any {
	steps := make([]stepOutput, len(q.Steps))
	for i, s := range q.Steps {
		steps[i] = stepOutput{Kind: s.Kind, CampaignID: string(s.CampaignID), Percent: s.Percent, Factor: s.Factor}
	}
	return struct {
		Date     rates.Date      `json:"date"`
		BaseRate string          `json:"base_rate"`
		SellRate string          `json:"sell_rate"`
		Factor   decimal.Decimal `json:"factor"`
		Steps    []stepOutput    `json:"steps"`
	}{q.Date, q.BaseRate.StringFixed(2), q.SellRate.StringFixed(2), q.Factor, steps}
}
