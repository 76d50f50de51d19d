package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mystronium-backend-go/internal/models"
)

const usersCollection = "users"

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// firestoreUserRepository implements UserRepository using Firestore.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	return &firestoreUserRepository{client: client}
}

// GetByID retrieves a user document by its ID (Firebase Auth UID).
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return decodeUser(docSnap)
}

// FindByStripeCustomerID looks up the single user linked to a Stripe customer.
func (r *firestoreUserRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, fmt.Errorf("empty customer ID: %w", ErrNotFound)
	}
	iter := r.client.Collection(usersCollection).
		Where("stripeCustomerId", "==", customerID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, fmt.Errorf("user with customer ID '%s' not found: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by customer ID '%s': %w", customerID, err)
	}
	return decodeUser(doc)
}

// UpdateBilling runs mutate inside a Firestore transaction.
// Firestore retries the transaction on contention, so mutate must be free of side effects.
func (r *firestoreUserRepository) UpdateBilling(ctx context.Context, userID string, mutate MutateUserFunc) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for UpdateBilling operation")
	}
	ref := r.client.Collection(usersCollection).Doc(userID)

	var updated *models.User
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
			}
			return fmt.Errorf("failed to read user with ID '%s': %w", userID, err)
		}
		user, err := decodeUser(snap)
		if err != nil {
			return err
		}
		if err := mutate(user); err != nil {
			return err
		}
		updated = user
		// Update, unlike Set, fails if the document was deleted meanwhile.
		return tx.Update(ref, billingUpdates(user))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func decodeUser(snap *firestore.DocumentSnapshot) (*models.User, error) {
	var user models.User
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", snap.Ref.ID, err)
	}
	user.ID = snap.Ref.ID
	return &user, nil
}

// billingUpdates lists every field owned by billing. lastUpdated is always server-assigned.
func billingUpdates(u *models.User) []firestore.Update {
	plan := u.PlanTier
	if plan == "" {
		plan = models.PlanFree
	}
	return []firestore.Update{
		{Path: "plan", Value: string(plan)},
		{Path: "stripeCustomerId", Value: stringOrDelete(u.StripeCustomerID)},
		{Path: "stripeSubscriptionId", Value: stringOrDelete(u.StripeSubscriptionID)},
		{Path: "subscriptionStatus", Value: stringOrDelete(u.SubscriptionStatus)},
		{Path: "currentPeriodEnd", Value: timeOrDelete(u.CurrentPeriodEnd)},
		{Path: "credits", Value: u.CreditBalance},
		{Path: "creditedPeriods", Value: creditedPeriodsOrDelete(u.CreditedPeriods)},
		{Path: "lastUpdated", Value: firestore.ServerTimestamp},
	}
}

func stringOrDelete(s string) interface{} {
	if s == "" {
		return firestore.Delete
	}
	return s
}

func creditedPeriodsOrDelete(periods map[string]time.Time) interface{} {
	if len(periods) == 0 {
		return firestore.Delete
	}
	out := make(map[string]interface{}, len(periods))
	for subID, end := range periods {
		out[subID] = end.UTC()
	}
	return out
}

func timeOrDelete(t time.Time) interface{} {
	if t.IsZero() {
		return firestore.Delete
	}
	return t.UTC()
}
