package address

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no address exists for the requested user or id.
var ErrNotFound = errors.New("address not found")

// ValidationError lists the required address fields that were left empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("please fill in all required address fields: missing %s", strings.Join(e.Fields, ", "))
}

// Address is a shipping address owned by a user.
type Address struct {
	ID         int64
	UserID     int64
	Street     string
	Suburb     string
	City       string
	Province   string
	Country    string
	PostalCode string

	// OrderSpecific marks an address written during a checkout attempt.
	OrderSpecific  bool
	OrderTimestamp time.Time
}

// Validate reports every missing required field. Suburb is optional.
func (a *Address) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"province", a.Province},
		{"country", a.Country},
		{"postalCode", a.PostalCode},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Format returns the denormalized delivery address stored on orders: all six
// fields joined with ", ", including empty ones.
func (a *Address) Format() string {
	return strings.Join(a.parts(), ", ")
}

// FormatCompact joins only the non-empty fields.
func (a *Address) FormatCompact() string {
	parts := make([]string, 0, 6)
	for _, p := range a.parts() {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (a *Address) parts() []string {
	return []string{a.Street, a.Suburb, a.City, a.Province, a.Country, a.PostalCode}
}

// Merge overlays the non-empty fields of incoming onto existing. The result
// keeps the existing identifier and owner.
func Merge(existing, incoming Address) Address {
	merged := existing
	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&merged.Street, incoming.Street)
	overlay(&merged.Suburb, incoming.Suburb)
	overlay(&merged.City, incoming.City)
	overlay(&merged.Province, incoming.Province)
	overlay(&merged.Country, incoming.Country)
	overlay(&merged.PostalCode, incoming.PostalCode)
	merged.OrderSpecific = incoming.OrderSpecific
	merged.OrderTimestamp = incoming.OrderTimestamp
	merged.ID = existing.ID
	if merged.UserID == 0 {
		merged.UserID = incoming.UserID
	}
	return merged
}

// Service is the remote address book.
type Service interface {
	// FindByUser returns the user's current address or ErrNotFound.
	FindByUser(ctx context.Context, userID int64) (*Address, error)
	GetByID(ctx context.Context, id int64) (*Address, error)
	Create(ctx context.Context, a *Address) (*Address, error)
	Update(ctx context.Context, a *Address) (*Address, error)
}
