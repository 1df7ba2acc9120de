package model

import "time"

const (
	MaxTicketTypeLen = 20
	MaxSeatLen       = 10
)

// Ticket is one issued entry credential. Owner never changes after
// issuance and Used only ever moves from false to true.
type Ticket struct {
	ID         string     `json:"id" bson:"_id"`
	Owner      Identity   `json:"owner" bson:"owner"`
	Token      Identity   `json:"token" bson:"token"`
	ConcertID  string     `json:"concert_id" bson:"concert_id"`
	TicketType string     `json:"ticket_type" bson:"ticket_type"`
	SeatNumber *string    `json:"seat_number,omitempty" bson:"seat_number,omitempty"`
	Used       bool       `json:"used" bson:"used"`
	IssuedAt   time.Time  `json:"issued_at" bson:"issued_at"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty" bson:"redeemed_at,omitempty"`
}

// Holding is the balance of a single token identity held by one account.
// A ticket token is minted with Amount 1 and Decimals 0.
type Holding struct {
	Token     Identity  `json:"token" bson:"_id"`
	Holder    Identity  `json:"holder" bson:"holder"`
	Authority Identity  `json:"authority" bson:"authority"`
	Amount    uint64    `json:"amount" bson:"amount"`
	Decimals  uint8     `json:"decimals" bson:"decimals"`
	MintedAt  time.Time `json:"minted_at" bson:"minted_at"`
}
