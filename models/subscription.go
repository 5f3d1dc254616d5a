package models

// Subscription tracks a user's plan purchase. At most one subscription
// per user should be active/trialing at a time; this is enforced by
// query filters at read time, not by a storage constraint.
type Subscription struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	PlanID          string `json:"plan_id"`
	Status          string `json:"status"` // incomplete, active, trialing, canceled
	PaymentIntentID string `json:"payment_intent_id"`
}

const (
	SubscriptionIncomplete = "incomplete"
	SubscriptionActive     = "active"
	SubscriptionTrialing   = "trialing"
	SubscriptionCanceled   = "canceled"
)
