package model

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionWaiting   SubscriptionStatus = "waiting"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionSuspended SubscriptionStatus = "suspended"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionWaiting, SubscriptionExpired, SubscriptionSuspended:
		return true
	}
	return false
}

type ClaimStatus string

const (
	ClaimRequested ClaimStatus = "requested"
	ClaimConfirmed ClaimStatus = "confirmed"
	ClaimRejected  ClaimStatus = "rejected"
)

// ClaimDecision is the administrator's verdict on a requested claim.
type ClaimDecision string

const (
	DecisionConfirm ClaimDecision = "confirm"
	DecisionReject  ClaimDecision = "reject"
)

func (d ClaimDecision) Status() ClaimStatus {
	if d == DecisionConfirm {
		return ClaimConfirmed
	}
	return ClaimRejected
}
