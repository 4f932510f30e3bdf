// Package transport defines the wire types for the national entity registry API.
package transport

import (
	"time"

	"konkursradar_backend/internal/address"
)

// PageResponse is the raw paginated response from the registry.
type PageResponse struct {
	Entities []RawEntity `json:"entities"`
	Page     PageInfo    `json:"page"`
}

// PageInfo carries the upstream pagination cursor state.
type PageInfo struct {
	Number        int `json:"number"`
	TotalPages    int `json:"totalPages"`
	TotalElements int `json:"totalElements"`
}

// RawEntity is one registered business entity as returned by the registry.
// Optional upstream fields are pointers; defaulting is centralized in the
// address normalizer and the status mapping below.
type RawEntity struct {
	OrgNumber        string      `json:"organisasjonsnummer"`
	Name             string      `json:"navn"`
	OrgForm          *OrgForm    `json:"organisasjonsform"`
	RegisteredAt     *string     `json:"registreringsdatoEnhetsregisteret"`
	Bankrupt         bool        `json:"konkurs"`
	UnderLiquidation bool        `json:"underAvvikling"`
	DeletedAt        *string     `json:"slettedato"`
	BusinessAddress  *RawAddress `json:"forretningsadresse"`
	MailingAddress   *RawAddress `json:"postadresse"`
}

// OrgForm is the upstream legal-form object.
type OrgForm struct {
	Code        string `json:"kode"`
	Description string `json:"beskrivelse"`
}

// RawAddress is the upstream address object shared by business and mailing kinds.
type RawAddress struct {
	Lines         []string `json:"adresse"`
	PostalCode    *string  `json:"postnummer"`
	PostalCity    *string  `json:"poststed"`
	KommuneNumber *string  `json:"kommunenummer"`
	KommuneName   *string  `json:"kommune"`
}

// Lifecycle statuses derived from the upstream flags.
const (
	StatusActive    = "active"
	StatusBankrupt  = "bankrupt"
	StatusDissolved = "dissolved"
)

// Status maps the upstream lifecycle flags to a single status value.
// Deletion wins over bankruptcy: a deleted entity is dissolved regardless
// of its bankruptcy flag.
func (e RawEntity) Status() string {
	if e.DeletedAt != nil && *e.DeletedAt != "" {
		return StatusDissolved
	}
	if e.Bankrupt {
		return StatusBankrupt
	}
	if e.UnderLiquidation {
		return StatusDissolved
	}
	return StatusActive
}

// OrgFormCode returns the legal-form code, or empty when absent upstream.
func (e RawEntity) OrgFormCode() string {
	if e.OrgForm == nil {
		return ""
	}
	return e.OrgForm.Code
}

// RegistrationDate parses the upstream registration date. Returns zero time
// when the field is absent or malformed; callers fall back to now.
func (e RawEntity) RegistrationDate() time.Time {
	if e.RegisteredAt == nil {
		return time.Time{}
	}
	parsed, err := time.Parse("2006-01-02", *e.RegisteredAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// RawBusiness converts the business address payload for normalization.
// Returns nil when the registry carried no business address.
func (e RawEntity) RawBusiness() *address.Raw {
	return toRaw(e.BusinessAddress)
}

// RawMailing converts the mailing address payload for normalization.
func (e RawEntity) RawMailing() *address.Raw {
	return toRaw(e.MailingAddress)
}

func toRaw(a *RawAddress) *address.Raw {
	if a == nil {
		return nil
	}
	return &address.Raw{
		Lines:         a.Lines,
		PostalCode:    a.PostalCode,
		PostalCity:    a.PostalCity,
		KommuneNumber: a.KommuneNumber,
		KommuneName:   a.KommuneName,
	}
}
