package models

import "fmt"

// ScopeType represents the kind of entity a media asset belongs to
type ScopeType string

const (
	ScopeTypeCourse ScopeType = "course"
	ScopeTypeUnit   ScopeType = "unit"
)

// OwnerScope identifies the course or unit a media asset is attached to.
// An asset belongs to exactly one scope.
type OwnerScope struct {
	Type ScopeType `json:"type"`
	ID   string    `json:"id"`
}

// CourseScope returns the owner scope of a course
func CourseScope(courseID string) OwnerScope {
	return OwnerScope{Type: ScopeTypeCourse, ID: courseID}
}

// UnitScope returns the owner scope of a unit
func UnitScope(unitID string) OwnerScope {
	return OwnerScope{Type: ScopeTypeUnit, ID: unitID}
}

// IsCourse reports whether the scope is a course
func (s OwnerScope) IsCourse() bool {
	return s.Type == ScopeTypeCourse
}

// IsUnit reports whether the scope is a unit
func (s OwnerScope) IsUnit() bool {
	return s.Type == ScopeTypeUnit
}

// Validate checks that the scope has a known type and a non-empty id
func (s OwnerScope) Validate() error {
	switch s.Type {
	case ScopeTypeCourse, ScopeTypeUnit:
	default:
		return fmt.Errorf("invalid scope type: %q", s.Type)
	}
	if s.ID == "" {
		return fmt.Errorf("%s id is required", s.Type)
	}
	return nil
}

// String returns "course/<id>" or "unit/<id>"
func (s OwnerScope) String() string {
	return fmt.Sprintf("%s/%s", s.Type, s.ID)
}
