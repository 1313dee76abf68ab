package domain

import "time"

// Visitor is a registered visitor. ID doubles as the session key used by the
// rate limiter and as the foreign key on conversation records.
type Visitor struct {
	ID                 string    `json:"id"`
	VisitorName        string    `json:"visitor_name"`
	VisitorAffiliation string    `json:"visitor_affiliation,omitempty"`
	VisitRef           string    `json:"visit_ref,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
