package rates

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GUARDRAIL ENFORCER - Floor on base-rate overrides
// =============================================================================

// ClampResult is the outcome of Clamp.
type ClampResult struct {
	Value      decimal.Decimal
	WasClamped bool
}

// Clamp raises a proposed base rate to the guardrail floor. A floor of zero
// or less disables the guardrail. Frozen dates must be filtered out by the
// caller before reaching here.
func Clamp(date Date, proposed, guardrailMin decimal.Decimal) ClampResult {
	if guardrailMin.IsPositive() && proposed.LessThan(guardrailMin) {
		guardrailClamps.Inc()
		return ClampResult{Value: guardrailMin, WasClamped: true}
	}
	return ClampResult{Value: proposed}
}

// GuardrailWarning is the non-fatal notice surfaced to the operator when an
// edit was raised to the floor.
type GuardrailWarning struct {
	Date      Date
	Requested decimal.Decimal
	Applied   decimal.Decimal
}

func (w GuardrailWarning) String() string {
	return fmt.Sprintf("%s: requested %s is below the guardrail, applied %s",
		w.Date, w.Requested.StringFixed(2), w.Applied.StringFixed(2))
}
