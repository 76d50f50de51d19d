package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mystronium-backend-go/internal/models"
)

var (
	periodOne = time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	periodTwo = time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
)

func TestPlanTierForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   models.PlanTier
	}{
		{"active", models.PlanPremium},
		{"trialing", models.PlanFree},
		{"past_due", models.PlanFree},
		{"canceled", models.PlanFree},
		{"unpaid", models.PlanFree},
		{"incomplete", models.PlanFree},
		{"incomplete_expired", models.PlanFree},
		{"paused", models.PlanFree},
		{"Active", models.PlanFree},
		{" active", models.PlanFree},
		{"", models.PlanFree},
		{"something_new", models.PlanFree},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanTierForStatus(tt.status))
		})
	}
}

func TestApplySubscriptionState(t *testing.T) {
	active := models.ProviderSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active", CurrentPeriodEnd: periodOne}

	t.Run("first active period grants bonus", func(t *testing.T) {
		u := &models.User{ID: "u1"}
		granted := ApplySubscriptionState(u, "cus_1", active, 10)

		assert.Equal(t, int64(10), granted)
		assert.Equal(t, int64(10), u.CreditBalance)
		assert.Equal(t, models.PlanPremium, u.PlanTier)
		assert.Equal(t, "cus_1", u.StripeCustomerID)
		assert.Equal(t, "sub_1", u.StripeSubscriptionID)
		assert.Equal(t, "active", u.SubscriptionStatus)
		assert.Equal(t, periodOne, u.CurrentPeriodEnd)
		assert.Equal(t, map[string]time.Time{"sub_1": periodOne}, u.CreditedPeriods)
	})

	t.Run("same period twice grants once", func(t *testing.T) {
		u := &models.User{ID: "u1"}
		ApplySubscriptionState(u, "cus_1", active, 10)
		granted := ApplySubscriptionState(u, "cus_1", active, 10)

		assert.Zero(t, granted)
		assert.Equal(t, int64(10), u.CreditBalance)
	})

	t.Run("next period grants again", func(t *testing.T) {
		u := &models.User{ID: "u1"}
		ApplySubscriptionState(u, "cus_1", active, 10)
		renewed := active
		renewed.CurrentPeriodEnd = periodTwo

		assert.Equal(t, int64(10), ApplySubscriptionState(u, "cus_1", renewed, 10))
		assert.Equal(t, int64(20), u.CreditBalance)
	})

	t.Run("older period grants nothing", func(t *testing.T) {
		u := &models.User{ID: "u1"}
		renewed := active
		renewed.CurrentPeriodEnd = periodTwo
		ApplySubscriptionState(u, "cus_1", renewed, 10)

		assert.Zero(t, ApplySubscriptionState(u, "cus_1", active, 10))
		assert.Equal(t, int64(10), u.CreditBalance)
	})

	t.Run("new subscription grants", func(t *testing.T) {
		u := &models.User{ID: "u1"}
		ApplySubscriptionState(u, "cus_1", active, 10)
		other := active
		other.ID = "sub_2"

		assert.Equal(t, int64(10), ApplySubscriptionState(u, "cus_1", other, 10))
		assert.Equal(t, int64(20), u.CreditBalance)
		assert.Equal(t, "sub_2", u.StripeSubscriptionID)
	})

	t.Run("returning to an earlier subscription period grants nothing", func(t *testing.T) {
		u := &models.User{ID: "u1"}
		subA := active
		subB := active
		subB.ID = "sub_2"

		assert.Equal(t, int64(10), ApplySubscriptionState(u, "cus_1", subA, 10))
		assert.Equal(t, int64(10), ApplySubscriptionState(u, "cus_1", subB, 10))
		assert.Zero(t, ApplySubscriptionState(u, "cus_1", subA, 10))
		assert.Equal(t, int64(20), u.CreditBalance)
		assert.Equal(t, map[string]time.Time{"sub_1": periodOne, "sub_2": periodOne}, u.CreditedPeriods)
	})

	t.Run("non-active status downgrades without touching credits", func(t *testing.T) {
		u := &models.User{ID: "u1"}
		ApplySubscriptionState(u, "cus_1", active, 10)
		pastDue := active
		pastDue.Status = "past_due"

		assert.Zero(t, ApplySubscriptionState(u, "cus_1", pastDue, 10))
		assert.Equal(t, models.PlanFree, u.PlanTier)
		assert.Equal(t, "past_due", u.SubscriptionStatus)
		assert.Equal(t, int64(10), u.CreditBalance)
	})

	t.Run("existing customer id is kept", func(t *testing.T) {
		u := &models.User{ID: "u1", StripeCustomerID: "cus_old"}
		ApplySubscriptionState(u, "cus_1", active, 10)
		assert.Equal(t, "cus_old", u.StripeCustomerID)
	})
}

func TestIsStaleSubscription(t *testing.T) {
	tests := []struct {
		name    string
		tracked string
		sub     models.ProviderSubscription
		want    bool
	}{
		{"nothing tracked", "", models.ProviderSubscription{ID: "sub_1", Status: "canceled"}, false},
		{"tracked subscription", "sub_1", models.ProviderSubscription{ID: "sub_1", Status: "past_due"}, false},
		{"other subscription active", "sub_2", models.ProviderSubscription{ID: "sub_1", Status: "active"}, false},
		{"other subscription canceled", "sub_2", models.ProviderSubscription{ID: "sub_1", Status: "canceled"}, true},
		{"other subscription past due", "sub_2", models.ProviderSubscription{ID: "sub_1", Status: "past_due"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &models.User{ID: "u1", StripeSubscriptionID: tt.tracked}
			assert.Equal(t, tt.want, IsStaleSubscription(u, tt.sub))
		})
	}
}

func TestRetireSubscription(t *testing.T) {
	sub := models.ProviderSubscription{ID: "sub_1", Status: "canceled", CurrentPeriodEnd: periodOne}

	t.Run("retires the tracked subscription", func(t *testing.T) {
		u := &models.User{ID: "u1", PlanTier: models.PlanPremium, StripeCustomerID: "cus_1", StripeSubscriptionID: "sub_1", CreditBalance: 10}
		require.True(t, RetireSubscription(u, "cus_1", sub))

		assert.Equal(t, models.PlanFree, u.PlanTier)
		assert.Equal(t, "canceled", u.SubscriptionStatus)
		assert.Empty(t, u.StripeSubscriptionID)
		assert.Equal(t, "cus_1", u.StripeCustomerID)
		assert.Equal(t, int64(10), u.CreditBalance)
	})

	t.Run("missing status is recorded as canceled", func(t *testing.T) {
		u := &models.User{ID: "u1", StripeSubscriptionID: "sub_1"}
		s := sub
		s.Status = ""
		require.True(t, RetireSubscription(u, "cus_1", s))
		assert.Equal(t, "canceled", u.SubscriptionStatus)
	})

	t.Run("ignores a different subscription", func(t *testing.T) {
		u := &models.User{ID: "u1", PlanTier: models.PlanPremium, StripeSubscriptionID: "sub_2"}
		assert.False(t, RetireSubscription(u, "cus_1", sub))
		assert.Equal(t, models.PlanPremium, u.PlanTier)
		assert.Equal(t, "sub_2", u.StripeSubscriptionID)
	})
}

func TestLinkCustomer(t *testing.T) {
	u := &models.User{ID: "u1"}
	require.NoError(t, LinkCustomer(u, "cus_1"))
	assert.Equal(t, "cus_1", u.StripeCustomerID)

	require.NoError(t, LinkCustomer(u, "cus_1"))

	err := LinkCustomer(u, "cus_2")
	assert.ErrorIs(t, err, ErrCustomerMismatch)
	assert.Equal(t, "cus_1", u.StripeCustomerID)
}
