package journal

import "time"

// Outcome classifies what happened to an inbound webhook delivery.
type Outcome string

const (
	// OutcomeAccepted means the feed authenticated the payload and its
	// handler was invoked.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRejected means the feed's authenticator refused the payload.
	// The remote caller still saw a 200.
	OutcomeRejected Outcome = "rejected"
	// OutcomeUnknownFeed means the request named a feed nobody registered.
	OutcomeUnknownFeed Outcome = "unknown_feed"
)

// Delivery is one row of the delivery log.
type Delivery struct {
	ID         string
	Feed       string
	Outcome    Outcome
	BodyBytes  int64
	RemoteAddr string
	ReceivedAt time.Time
}

// RecordRequest captures a delivery about to be journaled.
type RecordRequest struct {
	Feed       string
	Outcome    Outcome
	BodyBytes  int64
	RemoteAddr string
}
