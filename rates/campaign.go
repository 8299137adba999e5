package rates

// =============================================================================
// CAMPAIGN VALIDITY RESOLVER
// =============================================================================

// IsValid reports whether the campaign applies to a stay date: it must be
// active and the date must fall within [StartDate, EndDate] inclusive. A
// campaign with a missing bound is never valid.
func IsValid(date Date, c Campaign) bool {
	if !c.Active || c.StartDate.IsZero() || c.EndDate.IsZero() {
		return false
	}
	return Period{Start: c.StartDate, End: c.EndDate}.Contains(date)
}

// ValidCampaigns returns the campaigns valid for date, preserving order.
func ValidCampaigns(date Date, campaigns []Campaign) []Campaign {
	var valid []Campaign
	for _, c := range campaigns {
		if IsValid(date, c) {
			valid = append(valid, c)
		}
	}
	return valid
}

// DeepDeal returns the first valid deep-deal campaign for date, if any.
func DeepDeal(date Date, campaigns []Campaign) (Campaign, bool) {
	for _, c := range campaigns {
		if c.Slug.IsDeepDeal() && IsValid(date, c) {
			return c, true
		}
	}
	return Campaign{}, false
}

// BestOrdinary returns the valid non-deep-deal campaign with the strictly
// greatest discount. On a tie the first one encountered wins.
func BestOrdinary(date Date, campaigns []Campaign) (Campaign, bool) {
	var (
		best  Campaign
		found bool
	)
	for _, c := range campaigns {
		if c.Slug.IsDeepDeal() || !IsValid(date, c) {
			continue
		}
		if !found || c.DiscountPercent.GreaterThan(best.DiscountPercent) {
			best = c
			found = true
		}
	}
	return best, found
}

// mobileExcluded reports whether any valid ordinary campaign suppresses the
// mobile-rate discount on date.
func mobileExcluded(date Date, campaigns []Campaign) bool {
	for _, c := range campaigns {
		if c.Slug.ExcludesMobile() && IsValid(date, c) {
			return true
		}
	}
	return false
}
