package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"mystronium-backend-go/internal/models"
)

// expandableID accepts either a bare ID string or an expanded object carrying an "id".
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type stripeSubscriptionObject struct {
	ID               string       `json:"id"`
	Customer         expandableID `json:"customer"`
	Status           string       `json:"status"`
	CurrentPeriodEnd int64        `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

type stripeInvoiceObject struct {
	ID           string       `json:"id"`
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

type stripeCheckoutSessionObject struct {
	ID                string            `json:"id"`
	Customer          expandableID      `json:"customer"`
	Subscription      expandableID      `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type stripePaymentIntentObject struct {
	ID       string       `json:"id"`
	Customer expandableID `json:"customer"`
	Amount   int64        `json:"amount"`
	Currency string       `json:"currency"`
}

// decodeEventPayload maps the raw data.object of an event to its typed payload.
func decodeEventPayload(eventType string, raw json.RawMessage) (models.EventPayload, error) {
	switch eventType {
	case models.EventInvoicePaymentSucceeded, models.EventInvoicePaymentFailed:
		var inv stripeInvoiceObject
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		subID := string(inv.Subscription)
		if subID == "" {
			subID = string(inv.Parent.SubscriptionDetails.Subscription)
		}
		return models.InvoicePayload{
			InvoiceID:      inv.ID,
			CustomerID:     string(inv.Customer),
			SubscriptionID: subID,
		}, nil

	case models.EventCustomerSubscriptionCreated,
		models.EventCustomerSubscriptionUpdated,
		models.EventCustomerSubscriptionDeleted:
		var sub stripeSubscriptionObject
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		periodEnd := sub.CurrentPeriodEnd
		if periodEnd == 0 && len(sub.Items.Data) > 0 {
			periodEnd = sub.Items.Data[0].CurrentPeriodEnd
		}
		return models.SubscriptionPayload{Subscription: models.ProviderSubscription{
			ID:               sub.ID,
			CustomerID:       string(sub.Customer),
			Status:           sub.Status,
			CurrentPeriodEnd: unixToTime(periodEnd),
		}}, nil

	case models.EventCheckoutSessionCompleted:
		var session stripeCheckoutSessionObject
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		userID := session.Metadata[MetadataUserID]
		if userID == "" {
			userID = session.ClientReferenceID
		}
		return models.CheckoutSessionPayload{
			SessionID:      session.ID,
			CustomerID:     string(session.Customer),
			SubscriptionID: string(session.Subscription),
			UserID:         userID,
		}, nil

	case models.EventPaymentIntentSucceeded, models.EventPaymentIntentFailed:
		var pi stripePaymentIntentObject
		if err := json.Unmarshal(raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment_intent: %w", err)
		}
		return models.PaymentIntentPayload{
			PaymentIntentID: pi.ID,
			CustomerID:      string(pi.Customer),
			Amount:          pi.Amount,
			Currency:        pi.Currency,
		}, nil

	default:
		return models.UnhandledPayload{}, nil
	}
}

func unixToTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
