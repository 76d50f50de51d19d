package models

import "time"

// PlanTier is the product tier derived from the provider subscription status.
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanPremium PlanTier = "premium"
)

// User is the subset of the user document owned by billing.
// The document itself is created by the registration flow; billing only mutates it.
type User struct {
	ID                   string    `json:"id" firestore:"-"` // Firebase Auth UID, the document ID
	Email                string    `json:"email,omitempty" firestore:"email,omitempty"`
	PlanTier             PlanTier  `json:"planTier" firestore:"plan"`
	StripeCustomerID     string    `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty" firestore:"stripeSubscriptionId,omitempty"`
	SubscriptionStatus   string    `json:"subscriptionStatus,omitempty" firestore:"subscriptionStatus,omitempty"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd,omitempty" firestore:"currentPeriodEnd,omitempty"`
	CreditBalance        int64     `json:"creditBalance" firestore:"credits"`

	// CreditedPeriods maps each credited subscription ID to the end of its
	// latest credited billing period.
	CreditedPeriods map[string]time.Time `json:"-" firestore:"creditedPeriods,omitempty"`

	LastUpdated time.Time `json:"lastUpdated" firestore:"lastUpdated,omitempty"`
}
