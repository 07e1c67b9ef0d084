package model

import "time"

// LinkStatus tracks what happened to the money behind an issued link.
type LinkStatus string

const (
	StatusPending   LinkStatus = "pending"
	StatusWithdrawn LinkStatus = "withdrawn"
	StatusCancelled LinkStatus = "cancelled"
)

// PaymentLink is a share link issued by the service.
type PaymentLink struct {
	ID        string     `json:"id"`
	Code      string     `json:"code"`
	Action    string     `json:"action"`
	URL       string     `json:"url"`
	UserID    string     `json:"user_id,omitempty"`
	Status    LinkStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// LinkRecord is one line of the file storage journal.
type LinkRecord struct {
	UUID string `json:"uuid"`
	PaymentLink
}
