package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSPAHandlerServesIndex(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/", "/chat/some/client/route"} {
		rec := httptest.NewRecorder()
		SPAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "printdesk") {
			t.Fatalf("GET %s: expected the demo page, got %q", path, rec.Body.String())
		}
	}
}
