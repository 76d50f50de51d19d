package core

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/stretchr/testify/mock"

	"mystronium-backend-go/internal/db"
	"mystronium-backend-go/internal/models"
)

// memoryUserRepo is an in-memory UserRepository. UpdateBilling holds the lock
// across mutate, which serializes updates like a Firestore transaction.
type memoryUserRepo struct {
	mu        sync.Mutex
	users     map[string]models.User
	writes    int
	updateErr error
	findErr   error
}

func newMemoryUserRepo(users ...models.User) *memoryUserRepo {
	r := &memoryUserRepo{users: make(map[string]models.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memoryUserRepo) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, db.ErrNotFound)
	}
	return &u, nil
}

func (r *memoryUserRepo) FindByStripeCustomerID(_ context.Context, customerID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if customerID != "" && u.StripeCustomerID == customerID {
			u := u
			return &u, nil
		}
	}
	return nil, fmt.Errorf("customer %s: %w", customerID, db.ErrNotFound)
}

func (r *memoryUserRepo) UpdateBilling(_ context.Context, userID string, mutate db.MutateUserFunc) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, db.ErrNotFound)
	}
	u.CreditedPeriods = maps.Clone(u.CreditedPeriods)
	if err := mutate(&u); err != nil {
		return nil, err
	}
	r.users[userID] = u
	r.writes++
	return &u, nil
}

func (r *memoryUserRepo) user(id string) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *memoryUserRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) VerifyEvent(payload []byte, signature string) (*models.WebhookEvent, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(*models.WebhookEvent)
	return ev, args.Error(1)
}

func (m *mockProvider) FetchSubscription(ctx context.Context, subscriptionID string) (*models.ProviderSubscription, error) {
	args := m.Called(ctx, subscriptionID)
	sub, _ := args.Get(0).(*models.ProviderSubscription)
	return sub, args.Error(1)
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreatePortalSession(ctx context.Context, req models.PortalSessionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.BillingEvent
}

func (a *recordingAudit) RecordBillingEvent(_ context.Context, e models.BillingEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
	return nil
}

func (a *recordingAudit) outcomes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Outcome)
	}
	return out
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memoryDeduper) AlreadyProcessed(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id], nil
}

func (d *memoryDeduper) MarkProcessed(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	d.seen[id] = true
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.BillingNotification
}

func (n *recordingNotifier) Notify(_ context.Context, msg models.BillingNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}
