package resend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/core"
	apperrors "github.com/target/title-doctor/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Options{Config: config.ResendConfig{
		APIKey:      "re_key",
		BaseURL:     srv.URL,
		FromAddress: "titles@example.com",
		Timeout:     5 * time.Second,
	}})
}

func TestSend(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_key", r.Header.Get("Authorization"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, sendRequest{
			From:    "titles@example.com",
			To:      []string{"creator@example.com"},
			Subject: "New Titles for Example",
			HTML:    "<p>hi</p>",
			Text:    "hi",
		}, req)

		_, _ = w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	})

	id, err := client.Send(context.Background(), core.Email{
		To:      "creator@example.com",
		Subject: "New Titles for Example",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "49a3999c-0ce1-4ea6-ab68-afcd6dc2e794", id)
}

func TestSend_TextOnlyOmitsHTML(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.NotContains(t, raw, "html")
		assert.Equal(t, "failure notice", raw["text"])
		_, _ = w.Write([]byte(`{"id":"e2"}`))
	})

	_, err := client.Send(context.Background(), core.Email{To: "creator@example.com", Subject: "s", Text: "failure notice"})
	require.NoError(t, err)
}

func TestSend_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid to field"}`))
	})

	_, err := client.Send(context.Background(), core.Email{To: "creator@example.com", Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotification, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "validation_error: Invalid to field")
}

func TestSend_MissingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Send(context.Background(), core.Email{To: "creator@example.com", Subject: "s", Text: "t"})
	assert.Equal(t, apperrors.ErrCodeNotification, apperrors.GetCode(err))
}

func TestSend_MissingAPIKey(t *testing.T) {
	client := NewClient(Options{Config: config.ResendConfig{BaseURL: "http://127.0.0.1:1"}})

	_, err := client.Send(context.Background(), core.Email{To: "creator@example.com"})
	require.Error(t, err)
	assert.Equal(t, "Missing RESEND_API_KEY", err.Error())
}
