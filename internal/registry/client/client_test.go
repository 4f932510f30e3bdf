package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"konkursradar_backend/platform/logger"
)

type testConfig struct {
	baseURL string
}

func (c testConfig) GetRegistryBaseURL() string        { return c.baseURL }
func (c testConfig) GetRegistryRPS() float64           { return 1000 }
func (c testConfig) GetRegistryBurst() int             { return 10 }
func (c testConfig) GetRegistryTimeout() time.Duration { return 2 * time.Second }
func (c testConfig) GetRegistryMaxRetries() int        { return 2 }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(testConfig{baseURL: server.URL}, logger.New("development")), server
}

const pageBody = `{
	"entities": [
		{
			"organisasjonsnummer": "912345678",
			"navn": "Eksempel AS",
			"organisasjonsform": {"kode": "AS", "beskrivelse": "Aksjeselskap"},
			"registreringsdatoEnhetsregisteret": "2015-04-20",
			"konkurs": false,
			"underAvvikling": false,
			"forretningsadresse": {
				"adresse": ["Main St 1"],
				"postnummer": "0001",
				"poststed": "OSLO",
				"kommunenummer": "0301",
				"kommune": "OSLO"
			}
		}
	],
	"page": {"number": 0, "totalPages": 3, "totalElements": 2400}
}`

func TestFetchPageParsesEntitiesAndPagination(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pageBody))
	})

	since := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	page, err := c.FetchPage(context.Background(), PageFilter{
		KommuneNumber: "0301",
		Since:         &since,
		Page:          0,
		PageSize:      500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(page.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(page.Entities))
	}
	if !page.HasMore {
		t.Fatalf("expected HasMore for page 0 of 3")
	}
	if page.TotalAvailable != 2400 {
		t.Fatalf("expected totalAvailable 2400, got %d", page.TotalAvailable)
	}

	entity := page.Entities[0]
	if entity.OrgNumber != "912345678" {
		t.Fatalf("unexpected org number %q", entity.OrgNumber)
	}
	if entity.Status() != "active" {
		t.Fatalf("expected active status, got %q", entity.Status())
	}
	if entity.RegistrationDate().Format("2006-01-02") != "2015-04-20" {
		t.Fatalf("unexpected registration date %v", entity.RegistrationDate())
	}

	for _, want := range []string{"kommunenummer=0301", "fraRegistreringsdatoEnhetsregisteret=2024-01-15", "page=0", "size=500"} {
		if !containsParam(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(pageBody))
	})

	_, err := c.FetchPage(context.Background(), PageFilter{KommuneNumber: "0301", PageSize: 500})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestFetchPageExhaustedRetriesReturnsUnavailable(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchPage(context.Background(), PageFilter{KommuneNumber: "0301", PageSize: 500})

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
}

func TestFetchPageRetriesThrottledRequests(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(pageBody))
	})

	page, err := c.FetchPage(context.Background(), PageFilter{KommuneNumber: "0301", PageSize: 500})
	if err != nil {
		t.Fatalf("expected 429 to be retried to success, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if len(page.Entities) != 1 {
		t.Fatalf("expected entities from the retried fetch, got %d", len(page.Entities))
	}
}

func TestFetchPageDoesNotRetryRejectedFilter(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.FetchPage(context.Background(), PageFilter{KommuneNumber: "bogus", PageSize: 500})

	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for 4xx, got %d", attempts)
	}
}

func TestFetchPageStopsAtWindowCeiling(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request should be issued past the ceiling")
	})

	// size 1000, page 9: 1000*(9+2) > 10000
	_, err := c.FetchPage(context.Background(), PageFilter{KommuneNumber: "0301", Page: 9, PageSize: 1000})
	if !errors.Is(err, ErrWindowCeiling) {
		t.Fatalf("expected ErrWindowCeiling, got %v", err)
	}
}

func containsParam(query, param string) bool {
	for _, part := range strings.Split(query, "&") {
		if part == param {
			return true
		}
	}
	return false
}
