package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessAndFailureEmbeds(t *testing.T) {
	var received []DiscordMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg DiscordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received = append(received, msg)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := Notifier{WebhookURL: server.URL}
	require.NoError(t, n.Success("3 areas assessed"))
	require.NoError(t, n.Failure("fetch timed out"))

	require.Len(t, received, 2)
	assert.Equal(t, colorGreen, received[0].Embeds[0].Color)
	assert.Contains(t, received[0].Embeds[0].Description, "3 areas assessed")
	assert.Equal(t, colorRed, received[1].Embeds[0].Color)
}

func TestMissingWebhookIsNoOp(t *testing.T) {
	n := Notifier{}
	assert.NoError(t, n.Success("silent"))
	assert.NoError(t, n.Failure("silent"))
}

func TestUnexpectedStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	n := Notifier{WebhookURL: server.URL}
	assert.Error(t, n.Success("rate limited"))
}
