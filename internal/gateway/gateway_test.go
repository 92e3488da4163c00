package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/shopsync/internal/db"
	"github.com/vbonduro/shopsync/internal/device"
	"github.com/vbonduro/shopsync/internal/domain"
	"github.com/vbonduro/shopsync/internal/imagestore/local"
	"github.com/vbonduro/shopsync/internal/ledger"
	"github.com/vbonduro/shopsync/internal/service"
	"github.com/vbonduro/shopsync/internal/store"
	"github.com/vbonduro/shopsync/internal/syncer"
)

const (
	org   = "org-1"
	token = "secret-token"
)

type stubRunner struct {
	res *syncer.Result
	err error
}

func (s stubRunner) Run(context.Context) (*syncer.Result, error) { return s.res, s.err }

type testEnv struct {
	server *Server
	store  *store.Store
	device *device.Service
	t      *testing.T
}

func newTestEnv(t *testing.T, sync SyncRunner) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.New(d)
	dev := device.NewService(s.Device, logger)
	_, err = dev.Provision(context.Background(), device.Payload{
		OrgID:       org,
		OrgName:     "Bengkel Maju",
		AccessToken: token,
		DeviceID:    "dev-1",
		CloudURL:    "https://cloud.example.com",
		CloudKey:    "anon-key",
	})
	require.NoError(t, err)

	images, err := local.New(t.TempDir())
	require.NoError(t, err)

	l := ledger.NewService(s.Parts, s.Movements, logger)
	m := service.NewMaintenanceService(s, nil, logger)
	req := service.NewRequestService(s, logger)
	srv := NewServer(Services{
		Device:      dev,
		Ledger:      l,
		Maintenance: m,
		Requests:    req,
		Receipts:    service.NewReceiptService(s.Receipts, images, logger),
		Shifts:      service.NewShiftService(s.Shifts, logger),
		Fleet:       service.NewFleetService(s, logger),
		Snapshot:    service.NewSnapshotService(l, m, req, s.Shifts),
		Sync:        sync,
	}, logger)

	return &testEnv{server: srv, store: s, device: dev, t: t}
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) seedVehicle(id string) {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/sync/vehicles", []domain.Vehicle{
		{ID: id, Plate: "B " + id, Name: "Avanza", Status: domain.VehicleAvailable, DailyRate: decimal.NewFromInt(350000)},
	})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealth_NoAuth(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAuth(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong token", "Bearer nope"},
		{"wrong scheme", "Basic " + token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/inventory", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.server.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", decode[errorBody](t, rec).Code)
		})
	}
}

func TestAuth_LogoutRevokesAccess(t *testing.T) {
	e := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/inventory", nil).Code)

	require.NoError(t, e.device.Logout(context.Background()))

	rec := e.do(http.MethodGet, "/api/inventory", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DEVICE_NOT_CONFIGURED", decode[errorBody](t, rec).Code)
}

func TestDevice_HidesSecrets(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodGet, "/api/device", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orgId":"org-1"`)
	assert.NotContains(t, rec.Body.String(), token)
	assert.NotContains(t, rec.Body.String(), "anon-key")
}

func TestInventory_LowStockFlow(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodPost, "/api/parts", ledger.PartInput{Name: "Oil filter", Category: "filters", MinStock: 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	part := decode[domain.Part](t, rec)

	rec = e.do(http.MethodPost, "/api/inventory/move", ledger.MovementInput{PartID: part.ID, Quantity: 10, Type: "in", Reason: "delivery"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.do(http.MethodPost, "/api/inventory/move", ledger.MovementInput{PartID: part.ID, Quantity: 7, Type: "OUT", Reason: "service"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	low := decode[[]domain.PartStock](t, e.do(http.MethodGet, "/api/inventory/low-stock", nil))
	require.Len(t, low, 1)
	assert.Equal(t, int64(3), low[0].Quantity)
	assert.True(t, low[0].LowStock)

	history := decode[[]domain.InventoryMovement](t, e.do(http.MethodGet, "/api/inventory/"+part.ID+"/history?limit=1", nil))
	require.Len(t, history, 1)
	assert.Equal(t, domain.MovementOut, history[0].MovementType)
}

func TestInventory_Errors(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown part", http.MethodPost, "/api/inventory/move", ledger.MovementInput{PartID: "nope", Quantity: 1, Type: "IN"}, http.StatusNotFound, "NOT_FOUND"},
		{"bad type", http.MethodPost, "/api/inventory/move", ledger.MovementInput{PartID: "nope", Quantity: 1, Type: "GIFT"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"malformed body", http.MethodPost, "/api/parts", "not an object", http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Code)
		})
	}
}

func TestMaintenance_Lifecycle(t *testing.T) {
	e := newTestEnv(t, nil)
	e.seedVehicle("v1")

	start := service.StartInput{VehicleID: "v1", ServiceType: "Ganti oli", AssigneeName: "Budi"}
	rec := e.do(http.MethodPost, "/api/maintenance", start)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	job := decode[domain.MaintenanceRecord](t, rec)
	assert.Equal(t, domain.StepInShop, job.CurrentStep)

	rec = e.do(http.MethodPost, "/api/maintenance", start)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode[errorBody](t, rec).Code)

	rec = e.do(http.MethodPost, "/api/maintenance/"+job.ID+"/advance", map[string]string{"step": string(domain.StepQCCheck)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/api/maintenance/"+job.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ack := decode[ackBody](t, rec)
	assert.Equal(t, job.ID, ack.Data["id"])

	rec = e.do(http.MethodPost, "/api/maintenance/"+job.ID+"/complete", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ALREADY_COMPLETED", decode[errorBody](t, rec).Code)

	vehicles := decode[[]domain.Vehicle](t, e.do(http.MethodGet, "/api/vehicles", nil))
	require.Len(t, vehicles, 1)
	assert.Equal(t, domain.VehicleAvailable, vehicles[0].Status)

	rec = e.do(http.MethodGet, "/api/maintenance/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMaintenance_AddPartDrawsStock(t *testing.T) {
	e := newTestEnv(t, nil)
	e.seedVehicle("v1")

	part := decode[domain.Part](t, e.do(http.MethodPost, "/api/parts", ledger.PartInput{Name: "Brake pad", MinStock: 1}))
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/inventory/move", ledger.MovementInput{PartID: part.ID, Quantity: 4, Type: "IN"}).Code)
	job := decode[domain.MaintenanceRecord](t, e.do(http.MethodPost, "/api/maintenance", service.StartInput{VehicleID: "v1", ServiceType: "Rem"}))

	rec := e.do(http.MethodPost, "/api/maintenance/"+job.ID+"/parts", map[string]any{"partId": part.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2", decode[ackBody](t, rec).Data["quantity"])

	stock := decode[[]domain.PartStock](t, e.do(http.MethodGet, "/api/inventory", nil))
	require.Len(t, stock, 1)
	assert.Equal(t, int64(2), stock[0].Quantity)
}

func TestSnapshot_StableWithoutWrites(t *testing.T) {
	e := newTestEnv(t, nil)
	e.seedVehicle("v1")
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/maintenance", service.StartInput{VehicleID: "v1", ServiceType: "Tune up"}).Code)

	first := decode[map[string]json.RawMessage](t, e.do(http.MethodGet, "/api/sync/snapshot", nil))
	second := decode[map[string]json.RawMessage](t, e.do(http.MethodGet, "/api/sync/snapshot", nil))

	delete(first, "syncedAt")
	delete(second, "syncedAt")
	assert.Equal(t, first, second)
	assert.Contains(t, string(first["maintenance"]), "Tune up")
}

func TestRequests_Workflow(t *testing.T) {
	e := newTestEnv(t, nil)
	part := decode[domain.Part](t, e.do(http.MethodPost, "/api/parts", ledger.PartInput{Name: "Spark plug"}))

	rec := e.do(http.MethodPost, "/api/requests", service.RequestInput{
		RequesterName: "Budi",
		Items:         []domain.PartRequestItem{{PartName: "spark plug", Quantity: 4}, {PartName: "Wiper", Quantity: 1}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decode[domain.PartRequest](t, rec)

	rec = e.do(http.MethodPost, "/api/requests/"+req.ID+"/fulfill", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/requests/"+req.ID+"/decision", map[string]string{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/requests/"+req.ID+"/decision", map[string]string{"decision": "Approved", "note": "ok"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodPost, "/api/requests/"+req.ID+"/fulfill", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[service.FulfillResult](t, rec)
	assert.Equal(t, domain.RequestFulfilled, res.Request.Status)
	require.Len(t, res.Received, 1)
	assert.Equal(t, part.ID, res.Received[0].PartID)
	assert.Equal(t, []string{"Wiper"}, res.Unmatched)
}

func TestReceipts_PaidAndImage(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodPost, "/api/receipts", map[string]any{"supplier": "Toko Jaya", "amount": "125000.50"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rc := decode[domain.Receipt](t, rec)
	assert.False(t, rc.Paid)

	rec = e.do(http.MethodPost, "/api/receipts/"+rc.ID+"/paid", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[domain.Receipt](t, rec).Paid)

	rec = e.do(http.MethodPost, "/api/receipts/"+rc.ID+"/paid", map[string]bool{"paid": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[domain.Receipt](t, rec).Paid)

	rec = e.do(http.MethodGet, "/api/receipts/"+rc.ID+"/image", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	upload := httptest.NewRequest(http.MethodPost, "/api/receipts/"+rc.ID+"/image", bytes.NewReader(png))
	upload.Header.Set("Authorization", "Bearer "+token)
	upload.Header.Set("Content-Type", "image/png")
	rec = httptest.NewRecorder()
	e.server.ServeHTTP(rec, upload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(http.MethodGet, "/api/receipts/"+rc.ID+"/image", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestReceipts_RejectsUnknownImageType(t *testing.T) {
	e := newTestEnv(t, nil)
	rc := decode[domain.Receipt](t, e.do(http.MethodPost, "/api/receipts", map[string]any{"supplier": "Toko Jaya", "amount": 10}))

	upload := httptest.NewRequest(http.MethodPost, "/api/receipts/"+rc.ID+"/image", strings.NewReader("plain text"))
	upload.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, upload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShifts(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodGet, "/api/shifts/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodPost, "/api/shifts/end", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rep := decode[domain.ShiftReport](t, rec)
	assert.Contains(t, rep.Summary, "Jobs started: 0.")

	latest := decode[domain.ShiftReport](t, e.do(http.MethodGet, "/api/shifts/latest", nil))
	assert.Equal(t, rep.ID, latest.ID)
	assert.Len(t, decode[[]domain.ShiftReport](t, e.do(http.MethodGet, "/api/shifts", nil)), 1)
}

func TestRunSync(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		e := newTestEnv(t, nil)
		rec := e.do(http.MethodPost, "/api/sync/run", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("network failure hides detail", func(t *testing.T) {
		e := newTestEnv(t, stubRunner{err: fmt.Errorf("%w: dial tcp 10.0.0.1:443", domain.ErrNetwork)})
		rec := e.do(http.MethodPost, "/api/sync/run", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "NETWORK_FAILURE", body.Code)
		assert.NotContains(t, body.Error, "10.0.0.1")
	})

	t.Run("success", func(t *testing.T) {
		e := newTestEnv(t, stubRunner{res: &syncer.Result{Vehicles: 3, Pushed: 1, Attempts: 1}})
		rec := e.do(http.MethodPost, "/api/sync/run", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ack := decode[ackBody](t, rec)
		assert.Equal(t, "3", ack.Data["vehicles"])
		assert.Equal(t, "1", ack.Data["pushed"])
	})
}
