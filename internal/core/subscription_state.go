package core

import (
	"time"

	"mystronium-backend-go/internal/models"
)

// PlanTierForStatus maps a provider subscription status to a plan tier.
// Only the exact status "active" is paid; every other status is free.
func PlanTierForStatus(status string) models.PlanTier {
	if status == models.SubscriptionStatusActive {
		return models.PlanPremium
	}
	return models.PlanFree
}

// creditedForPeriod reports whether the credit bonus for sub's current
// billing period has already been applied to u.
func creditedForPeriod(u *models.User, sub models.ProviderSubscription) bool {
	end, ok := u.CreditedPeriods[sub.ID]
	if !ok {
		return false
	}
	return !sub.CurrentPeriodEnd.After(end)
}

// IsStaleSubscription reports whether sub is a non-active state for a
// subscription other than the one u currently tracks. Such events must not
// change the user.
func IsStaleSubscription(u *models.User, sub models.ProviderSubscription) bool {
	if u.StripeSubscriptionID == "" || u.StripeSubscriptionID == sub.ID {
		return false
	}
	return sub.Status != models.SubscriptionStatusActive
}

// ApplySubscriptionState sets the billing fields of u from the provider
// subscription and returns the number of credits granted.
//
// Credits are granted at most once per subscription billing period. Replays,
// other event types reporting the same state, and events for an older period
// grant nothing, for every subscription the user ever had. The customer ID is only filled in when empty.
func ApplySubscriptionState(u *models.User, customerID string, sub models.ProviderSubscription, bonus int64) int64 {
	tier := PlanTierForStatus(sub.Status)

	var granted int64
	if tier == models.PlanPremium && bonus > 0 && !creditedForPeriod(u, sub) {
		u.CreditBalance += bonus
		if u.CreditedPeriods == nil {
			u.CreditedPeriods = make(map[string]time.Time)
		}
		u.CreditedPeriods[sub.ID] = sub.CurrentPeriodEnd
		granted = bonus
	}

	u.PlanTier = tier
	u.StripeSubscriptionID = sub.ID
	if u.StripeCustomerID == "" {
		u.StripeCustomerID = customerID
	}
	u.SubscriptionStatus = sub.Status
	u.CurrentPeriodEnd = sub.CurrentPeriodEnd
	return granted
}

// RetireSubscription applies an explicit cancellation: the user reverts to
// free and the provider subscription ID is cleared. The customer ID stays.
// It reports false, changing nothing, when u already tracks another subscription.
func RetireSubscription(u *models.User, customerID string, sub models.ProviderSubscription) bool {
	if u.StripeSubscriptionID != "" && u.StripeSubscriptionID != sub.ID {
		return false
	}
	if u.StripeCustomerID == "" {
		u.StripeCustomerID = customerID
	}
	u.PlanTier = models.PlanFree
	u.SubscriptionStatus = sub.Status
	if u.SubscriptionStatus == "" || u.SubscriptionStatus == models.SubscriptionStatusActive {
		u.SubscriptionStatus = subscriptionStatusCanceled
	}
	u.CurrentPeriodEnd = sub.CurrentPeriodEnd
	u.StripeSubscriptionID = ""
	return true
}

const subscriptionStatusCanceled = "canceled"

// LinkCustomer sets the Stripe customer ID on u if it is unset.
// A different existing value is never overwritten.
func LinkCustomer(u *models.User, customerID string) error {
	switch u.StripeCustomerID {
	case "":
		u.StripeCustomerID = customerID
		return nil
	case customerID:
		return nil
	default:
		return ErrCustomerMismatch
	}
}
