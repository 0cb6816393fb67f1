package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoledger/internal/movement/adapters"
	"ecoledger/internal/movement/idempotency"
	"ecoledger/internal/movement/service"
	"ecoledger/internal/movement/store"
	"ecoledger/internal/platform/config"
	"ecoledger/internal/platform/logger"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/httputil"
	"ecoledger/pkg/testutil"
)

type denyAll struct{}

func (denyAll) IsApproved(context.Context, domain.ProducerID) bool { return false }

type fixture struct {
	router http.Handler
	idem   *idempotency.InMemoryStore
}

func newFixture(t *testing.T, approver service.Approver) fixture {
	t.Helper()
	log := logger.Discard()
	idem := idempotency.NewInMemoryStore()
	svc := service.New(store.NewInMemory(), approver,
		idempotency.NewCoordinator(idem, idempotency.WithLogger(log)),
		config.Defaults().AttachmentPolicy,
		service.WithLogger(log))
	r := chi.NewRouter()
	New(svc, log).Register(r)
	return fixture{router: r, idem: idem}
}

func body(producer, commodity string, ts time.Time) map[string]any {
	return map[string]any{
		"producerId":  producer,
		"commodityId": commodity,
		"type":        "HARVEST",
		"quantity":    10.5,
		"unit":        "kg",
		"timestamp":   ts.Format(time.RFC3339),
		"location":    map[string]any{"lat": -23.55, "lon": -46.63},
		"attachments": []map[string]any{{"type": "image/png", "url": "https://files/a.png", "hash": "abc"}},
	}
}

func create(t *testing.T, f fixture, key string, payload any) (*http.Response, CreateResponse) {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/movements", payload)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	rr := testutil.DoRequest(f.router, req)
	var resp CreateResponse
	if rr.Code == http.StatusCreated {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr.Result(), resp
}

func TestCreateMovement(t *testing.T) {
	f := newFixture(t, adapters.AllowAll{})
	res, created := create(t, f, "key-1", body("p-1", "soy", time.Now()))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	require.NotEmpty(t, created.MovementID)
	assert.Equal(t, "/movements/"+created.MovementID, res.Header.Get("Location"))

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/movements/"+created.MovementID))
	require.Equal(t, http.StatusOK, rr.Code)
	var detail MovementResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, "p-1", detail.ProducerID)
	assert.Equal(t, "10.5", detail.Quantity.String())
	require.NotNil(t, detail.Location)
	require.Len(t, detail.Attachments, 1)
}

func TestCreateMovement_SameKeyReturnsSameID(t *testing.T) {
	f := newFixture(t, adapters.AllowAll{})
	ts := time.Now()
	_, first := create(t, f, "key-2", body("p-1", "soy", ts))
	res, second := create(t, f, "key-2", body("p-1", "corn", ts))
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, first.MovementID, second.MovementID)
}

func TestCreateMovement_FingerprintWithoutKey(t *testing.T) {
	f := newFixture(t, adapters.AllowAll{})
	ts := time.Now()
	_, first := create(t, f, "", body("p-1", "soy", ts))
	_, second := create(t, f, "", body("p-1", "soy", ts))
	_, third := create(t, f, "", body("p-1", "corn", ts))
	assert.Equal(t, first.MovementID, second.MovementID)
	assert.NotEqual(t, first.MovementID, third.MovementID)
}

func TestCreateMovement_UnresolvedKeyIsConflict(t *testing.T) {
	f := newFixture(t, adapters.AllowAll{})
	require.NoError(t, f.idem.Create(context.Background(), &idempotency.Record{
		Key: "busy", Fingerprint: "x", Status: idempotency.StatusInProgress,
	}))

	res, _ := create(t, f, "busy", body("p-1", "soy", time.Now()))
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestCreateMovement_ValidationListsFields(t *testing.T) {
	f := newFixture(t, adapters.AllowAll{})
	rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/movements", map[string]any{
		"producerId":  "p-1",
		"quantity":    0,
		"location":    map[string]any{"lat": 10},
		"attachments": []map[string]any{{"type": "image/png", "url": "ftp://x"}},
	}))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	for _, field := range []string{"commodityId", "type", "quantity", "unit", "timestamp", "location", "attachments[0].url", "attachments[0].hash"} {
		assert.Contains(t, resp.ErrorDescription, field)
	}
	assert.NotContains(t, resp.ErrorDescription, "producerId")
}

func TestCreateMovement_UnapprovedProducerIsForbidden(t *testing.T) {
	f := newFixture(t, denyAll{})
	res, _ := create(t, f, "key-x", body("p-9", "soy", time.Now()))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestCreateMovement_DisallowedAttachmentType(t *testing.T) {
	f := newFixture(t, adapters.AllowAll{})
	b := body("p-1", "soy", time.Now())
	b["attachments"] = []map[string]any{{"type": "application/x-sh", "url": "https://f/x.sh", "hash": "h"}}
	res, _ := create(t, f, "", b)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestGetMovement_NotFound(t *testing.T) {
	f := newFixture(t, adapters.AllowAll{})
	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/movements/"+domain.NewMovementID().String()))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListAndHistory(t *testing.T) {
	f := newFixture(t, adapters.AllowAll{})
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		res, _ := create(t, f, "", body("p-1", "soy", base.AddDate(0, 0, i)))
		require.Equal(t, http.StatusCreated, res.StatusCode)
	}
	res, _ := create(t, f, "", body("p-1", "corn", base.AddDate(0, 0, 5)))
	require.Equal(t, http.StatusCreated, res.StatusCode)

	rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/producers/p-1/movements?page=1&size=2"))
	require.Equal(t, http.StatusOK, rr.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 4, list.Total)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "corn", list.Items[0].CommodityID)

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet,
		"/producers/p-1/movements?commodityId=soy&fromDate=2026-03-02T00:00:00Z"))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/producers/p-1/movements?fromDate=yesterday"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodGet, "/commodities/soy/history"))
	require.Equal(t, http.StatusOK, rr.Code)
	var hist HistoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &hist))
	require.Len(t, hist.Items, 3)
	assert.True(t, hist.Items[0].Timestamp.After(hist.Items[2].Timestamp))
}
