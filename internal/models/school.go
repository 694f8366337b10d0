package models

import "time"

// School is read-only to this service; its short uppercase code seeds
// student and employee code prefixes.
type School struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Admin is read-only; its username is the preferred prefix source for
// teacher codes on its campus.
type Admin struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	CampusID  *string   `db:"campus_id" json:"campus_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
