/*
calculator.go - Rate factor calculator (forward and inverse pricing stack)

PURPOSE:
  Turns a base rate into the sell rate guests see, and a desired sell rate
  back into the base rate that must be pushed to the PMS.

PIPELINE:
  The stack is an ordered list of Steps, each contributing a multiplicative
  factor. Order matters; tax is added after the non-refundable discount but
  before promotional discounts.

    1. multiplier      (forced multiplier, else profile multiplier)
    2. non-refundable  (if active)           x (1 - p/100)
    3. tax             (if exclusive, p > 0) x (1 + p/100)
    4. deep deal       (if one is valid)     x (1 - p/100), and NOTHING below
    5a. member         (if p > 0)            x (1 - p/100)
    5b. best ordinary campaign               x (1 - p/100)
    5c. targeting      (if requested)
          mobile: unless a valid campaign excludes mobile
          country: whenever active

  Forward multiplies base by every factor in order. Inverse divides the sell
  rate by every factor in reverse order, ending with the multiplier. Both are
  generated from the same step list, so they cannot drift apart.

ZERO FACTOR:
  A zero factor anywhere (a 100% discount, a zero multiplier) makes the
  inverse undefined. Inverse then returns 0 with ErrInversionUndefined and
  callers must treat 0 as "cannot satisfy target", never as a rate.

SEE ALSO:
  - campaign.go: Which campaigns are valid on a date
  - desk.go: Uses Inverse for sell-target edits
*/
package rates

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// STEPS - Ordered factor descriptors
// =============================================================================

type StepKind string

const (
	StepMultiplier    StepKind = "multiplier"
	StepNonRefundable StepKind = "non_refundable"
	StepTax           StepKind = "tax"
	StepDeepDeal      StepKind = "deep_deal"
	StepMember        StepKind = "member"
	StepCampaign      StepKind = "campaign"
	StepMobile        StepKind = "mobile"
	StepCountry       StepKind = "country"
)

// Step is one applied layer of the pricing stack.
type Step struct {
	Kind       StepKind
	CampaignID CampaignID // set for deep-deal and campaign steps
	Percent    decimal.Decimal
	Factor     decimal.Decimal
}

// Options tune a single calculation.
type Options struct {
	// IncludeTargeting lets mobile and country discounts participate.
	IncludeTargeting bool

	// ForceMultiplier replaces the profile multiplier when set.
	ForceMultiplier *decimal.Decimal
}

func discount(percent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(percent.Div(hundred))
}

func markup(percent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(percent.Div(hundred))
}

// Steps resolves the ordered pricing stack for a date.
func Steps(memberDiscountPercent decimal.Decimal, profile CalculatorProfile, date Date, opts Options) []Step {
	multiplier := profile.Multiplier
	if opts.ForceMultiplier != nil {
		multiplier = *opts.ForceMultiplier
	}
	steps := []Step{{Kind: StepMultiplier, Factor: multiplier}}

	if profile.NonRefundable.Active {
		steps = append(steps, Step{
			Kind:    StepNonRefundable,
			Percent: profile.NonRefundable.Percent,
			Factor:  discount(profile.NonRefundable.Percent),
		})
	}

	if profile.TaxMode == TaxExclusive && profile.TaxPercent.IsPositive() {
		steps = append(steps, Step{
			Kind:    StepTax,
			Percent: profile.TaxPercent,
			Factor:  markup(profile.TaxPercent),
		})
	}

	if deal, ok := DeepDeal(date, profile.Campaigns); ok {
		return append(steps, Step{
			Kind:       StepDeepDeal,
			CampaignID: deal.ID,
			Percent:    deal.DiscountPercent,
			Factor:     discount(deal.DiscountPercent),
		})
	}

	if memberDiscountPercent.IsPositive() {
		steps = append(steps, Step{
			Kind:    StepMember,
			Percent: memberDiscountPercent,
			Factor:  discount(memberDiscountPercent),
		})
	}

	if best, ok := BestOrdinary(date, profile.Campaigns); ok {
		steps = append(steps, Step{
			Kind:       StepCampaign,
			CampaignID: best.ID,
			Percent:    best.DiscountPercent,
			Factor:     discount(best.DiscountPercent),
		})
	}

	if opts.IncludeTargeting {
		if profile.MobileRate.Active && !mobileExcluded(date, profile.Campaigns) {
			steps = append(steps, Step{
				Kind:    StepMobile,
				Percent: profile.MobileRate.Percent,
				Factor:  discount(profile.MobileRate.Percent),
			})
		}
		if profile.CountryRate.Active {
			steps = append(steps, Step{
				Kind:    StepCountry,
				Percent: profile.CountryRate.Percent,
				Factor:  discount(profile.CountryRate.Percent),
			})
		}
	}

	return steps
}

// Factor is the product of every step factor.
func Factor(steps []Step) decimal.Decimal {
	factor := decimal.NewFromInt(1)
	for _, s := range steps {
		factor = factor.Mul(s.Factor)
	}
	return factor
}

// =============================================================================
// FORWARD / INVERSE
// =============================================================================

// Forward computes the sell rate for a base rate.
func Forward(baseRate, memberDiscountPercent decimal.Decimal, profile CalculatorProfile, date Date, opts Options) decimal.Decimal {
	return ApplySteps(baseRate, Steps(memberDiscountPercent, profile, date, opts))
}

// Inverse computes the base rate whose forward result is sellRate.
// Returns 0 and ErrInversionUndefined when the factor is zero.
func Inverse(sellRate, memberDiscountPercent decimal.Decimal, profile CalculatorProfile, date Date, opts Options) (decimal.Decimal, error) {
	return UnapplySteps(sellRate, Steps(memberDiscountPercent, profile, date, opts))
}

// ApplySteps multiplies rate by each step factor in order.
func ApplySteps(rate decimal.Decimal, steps []Step) decimal.Decimal {
	for _, s := range steps {
		rate = rate.Mul(s.Factor)
	}
	return rate
}

// UnapplySteps divides rate by each step factor in reverse order.
func UnapplySteps(rate decimal.Decimal, steps []Step) (decimal.Decimal, error) {
	for _, s := range steps {
		if s.Factor.IsZero() {
			return decimal.Zero, ErrInversionUndefined
		}
	}
	for i := len(steps) - 1; i >= 0; i-- {
		rate = rate.Div(steps[i].Factor)
	}
	return rate, nil
}

// =============================================================================
// QUOTE - Both directions plus the breakdown, for display
// =============================================================================

// Quote explains one calculation.
type Quote struct {
	Date     Date
	BaseRate decimal.Decimal
	SellRate decimal.Decimal
	Factor   decimal.Decimal
	Steps    []Step
}

// QuoteForward prices a base rate and returns the breakdown.
func QuoteForward(baseRate, memberDiscountPercent decimal.Decimal, profile CalculatorProfile, date Date, opts Options) Quote {
	steps := Steps(memberDiscountPercent, profile, date, opts)
	return Quote{
		Date:     date,
		BaseRate: baseRate,
		SellRate: ApplySteps(baseRate, steps),
		Factor:   Factor(steps),
		Steps:    steps,
	}
}

// QuoteInverse finds the base rate for a target sell rate and returns the breakdown.
func QuoteInverse(sellRate, memberDiscountPercent decimal.Decimal, profile CalculatorProfile, date Date, opts Options) (Quote, error) {
	steps := Steps(memberDiscountPercent, profile, date, opts)
	base, err := UnapplySteps(sellRate, steps)
	q := Quote{
		Date:     date,
		BaseRate: base,
		SellRate: sellRate,
		Factor:   Factor(steps),
		Steps:    steps,
	}
	return q, err
}
