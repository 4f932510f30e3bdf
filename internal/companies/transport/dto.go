// Package transport defines request and response DTOs for the companies API.
package transport

import "time"

// CompanyResponse is the API representation of a registered entity.
type CompanyResponse struct {
	OrgNumber     string     `json:"orgNumber"`
	Name          string     `json:"name"`
	OrgForm       string     `json:"orgForm"`
	Status        string     `json:"status"`
	RegisteredAt  *string    `json:"registeredAt,omitempty"`
	AddressLine   string     `json:"addressLine,omitempty"`
	PostalCode    string     `json:"postalCode,omitempty"`
	KommuneNumber string     `json:"kommuneNumber,omitempty"`
	KommuneName   string     `json:"kommuneName,omitempty"`
	LastSyncedAt  *time.Time `json:"lastSyncedAt,omitempty"`
}

// CompanyListResponse wraps a page of companies.
type CompanyListResponse struct {
	Companies []CompanyResponse `json:"companies"`
	Total     int               `json:"total"`
}

// AddressHistoryEntry is one valid-time interval of an entity's address series.
type AddressHistoryEntry struct {
	Kind          string     `json:"kind"`
	AddressLine   string     `json:"addressLine"`
	PostalCode    string     `json:"postalCode"`
	KommuneNumber string     `json:"kommuneNumber"`
	KommuneName   string     `json:"kommuneName"`
	ValidFrom     time.Time  `json:"validFrom"`
	ValidTo       *time.Time `json:"validTo"`
	IsCurrent     bool       `json:"isCurrent"`
}

// AddressHistoryResponse is the full history for one entity, newest first.
type AddressHistoryResponse struct {
	OrgNumber string                `json:"orgNumber"`
	Entries   []AddressHistoryEntry `json:"entries"`
}

// ListCompaniesRequest filters the company list endpoint.
type ListCompaniesRequest struct {
	Kommune string `form:"kommune" validate:"required,len=4,numeric"`
	Status  string `form:"status" validate:"omitempty,oneof=active bankrupt dissolved"`
	Limit   int    `form:"limit" validate:"omitempty,min=1,max=500"`
}

// HistoryWindowRequest bounds an address history query to a time window.
type HistoryWindowRequest struct {
	From *time.Time `form:"from" time_format:"2006-01-02"`
	To   *time.Time `form:"to" time_format:"2006-01-02"`
}
