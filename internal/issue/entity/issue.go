package entity

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Category of site an accessibility issue is reported against.
type Category string

const (
	CategoryPrivateBusiness Category = "Private Business"
	CategoryCityProperty    Category = "City Property"
)

// Issue lifecycle states.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusInProgress || s == StatusResolved
}

// Draft is one submission attempt as entered in the report form. Drafts are
// transient; a successful submission turns a draft into a Record.
type Draft struct {
	FullName     string
	Description  string
	Category     Category
	BusinessName string
	Address      string
	County       string
	Email        string
	// Photos holds the raw image payloads in the order the user attached
	// them. May be empty.
	Photos [][]byte
}

// ValidationError names the first form field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid draft: %s %s", e.Field, e.Reason)
}

// Validate applies the shared form validation rules. A business report needs
// a business name; a city-property report needs a county.
func (d *Draft) Validate() error {
	switch {
	case d.FullName == "":
		return &ValidationError{Field: "fullName", Reason: "is required"}
	case d.Email == "":
		return &ValidationError{Field: "email", Reason: "is required"}
	case d.Description == "":
		return &ValidationError{Field: "description", Reason: "is required"}
	case d.Address == "":
		return &ValidationError{Field: "address", Reason: "is required"}
	}
	switch d.Category {
	case CategoryPrivateBusiness:
		if d.BusinessName == "" {
			return &ValidationError{Field: "businessName", Reason: "is required for a private business"}
		}
	case CategoryCityProperty:
		if d.County == "" {
			return &ValidationError{Field: "county", Reason: "is required for city property"}
		}
	default:
		return &ValidationError{Field: "category", Reason: "must be selected"}
	}
	return nil
}

// Record is a persisted issue report. Created once at successful submission
// and immutable afterwards apart from its lifecycle status. PhotoRefs always
// has one ref per photo of the originating draft; partial photo sets are
// never persisted.
type Record struct {
	ID           string         `db:"id" json:"id"`
	FullName     string         `db:"full_name" json:"fullName"`
	Description  string         `db:"description" json:"description"`
	Category     Category       `db:"category" json:"category"`
	BusinessName *string        `db:"business_name" json:"businessName,omitempty"`
	Address      string         `db:"address" json:"address"`
	County       *string        `db:"county" json:"county,omitempty"`
	Email        string         `db:"email" json:"email"`
	PhotoRefs    pq.StringArray `db:"photo_refs" json:"photoRefs"`
	UserID       string         `db:"user_id" json:"userId"`
	UserName     string         `db:"user_name" json:"userName"`
	Status       string         `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}
