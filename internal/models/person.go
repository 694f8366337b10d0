package models

import "time"

// Role is the closed set of directory roles. Code-bearing roles carry a
// role-specific code format; parents and principals never receive a code.
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleTeacher   Role = "TEACHER"
	RoleStaff     Role = "STAFF"
	RoleParent    Role = "PARENT"
	RolePrincipal Role = "PRINCIPAL"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleStaff, RoleParent, RolePrincipal:
		return true
	}
	return false
}

// HasCode reports whether records of this role carry an allocated code.
func (r Role) HasCode() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleStaff:
		return true
	}
	return false
}

// Person represents a directory record. Code and username are assigned once
// at creation; only an explicit credential reset or a reconciliation run may
// rewrite them.
type Person struct {
	ID           string    `db:"id" json:"id"`
	Role         Role      `db:"role" json:"role"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	CampusID     *string   `db:"campus_id" json:"campus_id,omitempty"`
	FullName     string    `db:"full_name" json:"full_name"`
	Username     string    `db:"username" json:"username"`
	Code         *string   `db:"code" json:"code,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CodeUpdate is one element of a reconciliation bulk write.
type CodeUpdate struct {
	PersonID string
	Code     string
}
