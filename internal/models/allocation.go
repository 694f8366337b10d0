package models

import (
	"fmt"
	"strings"
	"time"
)

// AllocationScope identifies one independent numbering line. Two codes in
// the same scope must never share a sequence number; scopes with coinciding
// textual prefixes but different keys are independent.
type AllocationScope struct {
	Role     Role
	SchoolID string
	CampusID *string
	Year     int    // student scopes only, zero otherwise
	Prefix   string // normalized prefix source (school code or admin-derived)
}

// Key renders the scope as a stable counter key.
func (s AllocationScope) Key() string {
	campus := "-"
	if s.CampusID != nil && *s.CampusID != "" {
		campus = *s.CampusID
	}
	return strings.Join([]string{string(s.Role), s.SchoolID, campus, fmt.Sprintf("%d", s.Year), s.Prefix}, ":")
}

// BackfillReport summarises one reconciliation run.
type BackfillReport struct {
	JobID        string    `json:"job_id"`
	TeachersSeen int       `json:"teachers_seen"`
	Groups       int       `json:"groups"`
	Skipped      int       `json:"skipped"`
	Updated      int64     `json:"updated"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
