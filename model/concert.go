package model

import "time"

const (
	MaxNameLen  = 50
	MaxVenueLen = 50
	MaxDateLen  = 10
)

type Concert struct {
	ID           string    `json:"id" bson:"_id"`
	Authority    Identity  `json:"authority" bson:"authority"`
	Name         string    `json:"name" bson:"name"`
	Venue        string    `json:"venue" bson:"venue"`
	Date         string    `json:"date" bson:"date"`
	TotalTickets uint16    `json:"total_tickets" bson:"total_tickets"`
	TicketsSold  uint16    `json:"tickets_sold" bson:"tickets_sold"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// RemainingTickets is the capacity still available for issuance.
func (c Concert) RemainingTickets() uint16 {
	if c.TicketsSold >= c.TotalTickets {
		return 0
	}
	return c.TotalTickets - c.TicketsSold
}

func (c Concert) SoldOut() bool {
	return c.TicketsSold >= c.TotalTickets
}
