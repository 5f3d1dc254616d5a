package models

import (
	"time"
)

type Event struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Slug             string    `json:"slug"`
	OrganizerID      string    `json:"organizer_id"`
	Date             time.Time `json:"date"`
	Venue            string    `json:"venue"`
	Price            int64     `json:"price"` // centavos; 0 for free events
	Currency         string    `json:"currency"`
	IsFree           bool      `json:"is_free"`
	Capacity         int       `json:"capacity"`
	AvailableTickets int       `json:"available_tickets"`
}

type Plan struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"` // centavos
}
