package server

import (
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func TestOAuthHandler(t *testing.T) {
	config := &oauth2.Config{ClientID: "id", ClientSecret: "secret"}

	t.Run("rejects mismatched state", func(t *testing.T) {
		h := NewOAuthHandler(config, "expected_state")

		req := httptest.NewRequest("GET", "/callback?state=wrong&code=abc", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != 400 {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-h.Result()
		if result.Error() == nil {
			t.Error("expected state error in result")
		}
	})

	t.Run("reports authorization denial", func(t *testing.T) {
		h := NewOAuthHandler(config, "s")

		req := httptest.NewRequest("GET", "/callback?state=s&error=access_denied&error_description=nope", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		result := <-h.Result()
		if result.Error() == nil {
			t.Fatal("expected error result")
		}
	})

	t.Run("handles the callback only once", func(t *testing.T) {
		h := NewOAuthHandler(config, "s")

		first := httptest.NewRequest("GET", "/callback?state=wrong", nil)
		h.ServeHTTP(httptest.NewRecorder(), first)

		second := httptest.NewRequest("GET", "/callback?state=s&code=abc", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, second)

		if rec.Code != 400 {
			t.Errorf("expected repeat callback to be rejected, got %d", rec.Code)
		}
	})
}
