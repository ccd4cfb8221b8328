package types

import (
	"regexp"
	"strings"
)

var pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// Address is the shipping address captured at checkout and stored with the order.
type Address struct {
	FullName   string  `json:"full_name" validate:"required,max=120"`
	Phone      string  `json:"phone" validate:"required,min=10,max=15"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2,omitempty" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=80"`
	State      string  `json:"state" validate:"required,max=80"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country,omitempty"`
}

// Missing lists the required fields that are blank, in declaration order.
func (a Address) Missing() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"full_name", a.FullName},
		{"phone", a.Phone},
		{"line1", a.Line1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// ValidPostalCode reports whether the postal code is a six digit PIN.
func (a Address) ValidPostalCode() bool {
	return pincodePattern.MatchString(strings.TrimSpace(a.PostalCode))
}

// Normalized trims every field and defaults the country.
func (a Address) Normalized() Address {
	out := Address{
		FullName:   strings.TrimSpace(a.FullName),
		Phone:      strings.TrimSpace(a.Phone),
		Line1:      strings.TrimSpace(a.Line1),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
	if a.Line2 != nil {
		if line2 := strings.TrimSpace(*a.Line2); line2 != "" {
			out.Line2 = &line2
		}
	}
	if out.Country == "" {
		out.Country = "IN"
	}
	return out
}
