package receipts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/db/models"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
)

func TestHTTPSenderSend(t *testing.T) {
	var received payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender, err := NewHTTPSender(config.ReceiptsConfig{
		EndpointURL: server.URL,
		FromEmail:   "proshop@fairway.test",
		Timeout:     time.Second,
	}, logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	require.NoError(t, err)

	completedAt := time.Now().UTC()
	tx := &models.Transaction{
		ID: uuid.New(),
		Items: []models.TransactionItem{
			{Name: "Range Balls", UnitPriceCents: 1599, Quantity: 2, LineTotalCents: 3198},
		},
		Pricing:     models.Pricing{TotalCents: 3401},
		CompletedAt: &completedAt,
	}

	sender.Send(context.Background(), tx, "member@fairway.test")

	assert.Equal(t, tx.ID.String(), received.TransactionID)
	assert.Equal(t, "member@fairway.test", received.Email)
	assert.Equal(t, "proshop@fairway.test", received.FromEmail)
	assert.Equal(t, "34.01", received.Total)
	require.Len(t, received.Items, 1)
}

func TestHTTPSenderSend_endpointFailureIsSwallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender, err := NewHTTPSender(config.ReceiptsConfig{EndpointURL: server.URL, Timeout: time.Second}, logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	require.NoError(t, err)

	// Must not panic or surface the failure.
	sender.Send(context.Background(), &models.Transaction{ID: uuid.New()}, "member@fairway.test")
}

func TestNewHTTPSender_requiresEndpoint(t *testing.T) {
	_, err := NewHTTPSender(config.ReceiptsConfig{}, logger.New(logger.Options{Level: zerolog.ErrorLevel}))
	assert.Error(t, err)
}
