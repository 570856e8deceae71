package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/pos-sync/database"
	"github.com/yeremiapane/pos-sync/kds"
	"github.com/yeremiapane/pos-sync/models"
	"github.com/yeremiapane/pos-sync/realtime"
	"github.com/yeremiapane/pos-sync/router"
	"github.com/yeremiapane/pos-sync/services"
	"github.com/yeremiapane/pos-sync/stores"
	"github.com/yeremiapane/pos-sync/syncer"
	"github.com/yeremiapane/pos-sync/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	utils.InitLogger()
	os.Exit(m.Run())
}

type refusingDialer struct{}

func (refusingDialer) Dial(string) (realtime.Conn, error) {
	return nil, errors.New("dial refused")
}

type noopDomain struct {
	name   string
	weight int
	err    error
}

func (d *noopDomain) Name() string   { return d.name }
func (d *noopDomain) Weight() int    { return d.weight }
func (d *noopDomain) Optional() bool { return false }

func (d *noopDomain) SyncFromCloud(context.Context, string) error { return d.err }
func (d *noopDomain) SyncToCloud(context.Context, string) error   { return d.err }

type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	kitchen  *stores.KitchenOrderStore
	mappings *stores.OrderMappingStore
	staff    *services.StaffService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	kitchen := stores.NewKitchenOrderStore(db, "tenant-1")
	mappings := stores.NewOrderMappingStore(db, "tenant-1")
	hub := kds.NewHub()

	conn := realtime.NewConnectionManager(
		"ws://backend", "tenant-1", realtime.DevicePOS,
		refusingDialer{}, nil,
		realtime.Options{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxRetries: 0, QueueLimit: 10},
	)

	orders := services.NewOrderService("tenant-1", "device-1", kitchen, mappings, conn, nil, hub)
	conn.SetHandler(orders)

	orchestrator := syncer.NewOrchestrator(db, []syncer.DomainSyncer{
		&noopDomain{name: "settings", weight: 50},
		&noopDomain{name: "menu", weight: 50},
	})
	staff := services.NewStaffService(db, "tenant-1")

	r := router.SetupRouter(router.Deps{
		TenantID:     "tenant-1",
		Orders:       orders,
		Kitchen:      kitchen,
		Mappings:     mappings,
		Orchestrator: orchestrator,
		Conn:         conn,
		Staff:        staff,
		Hub:          hub,
	})

	return &testEnv{router: r, db: db, kitchen: kitchen, mappings: mappings, staff: staff}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) utils.JSONResponse {
	t.Helper()
	var resp utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/orders", models.KitchenOrder{
		OrderNumber: "A-100",
		OrderType:   models.OrderTypeDineIn,
		Source:      models.SourcePOS,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Status)
	assert.Contains(t, resp.Message, "no items")
}

func TestCreateOrderFallsBackToLocalTier(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPost, "/orders", models.KitchenOrder{
		OrderNumber: "A-100",
		OrderType:   models.OrderTypeDineIn,
		Source:      models.SourcePOS,
		Items: models.KitchenOrderItems{
			{Name: "Rendang", Quantity: 1},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Status)
	assert.Equal(t, "order submitted via local", resp.Message)

	unsynced, err := env.kitchen.GetUnsynced()
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "A-100", unsynced[0].OrderNumber)
}

func TestGetActiveOrders(t *testing.T) {
	env := newTestEnv(t)

	order := models.KitchenOrder{
		ID:          "kds-1",
		OrderNumber: "A-100",
		OrderType:   models.OrderTypeDineIn,
		Source:      models.SourcePOS,
		Status:      models.KitchenStatusPending,
		Items:       models.KitchenOrderItems{{ID: "i1", Name: "Sate", Quantity: 2, Status: "pending"}},
	}
	applied, err := env.kitchen.Save(&order)
	require.NoError(t, err)
	require.True(t, applied)

	w := env.request(t, http.MethodGet, "/orders/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "A-100")
	assert.Contains(t, w.Body.String(), "Sate")
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodPatch, "/orders/kds-1/status", gin.H{"status": "finished"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeResponse(t, w).Message, "unknown status")

	w = env.request(t, http.MethodPatch, "/orders/kds-1/status", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrderStatusHappyPath(t *testing.T) {
	env := newTestEnv(t)

	order := models.KitchenOrder{
		ID:          "kds-1",
		OrderNumber: "A-100",
		OrderType:   models.OrderTypeDineIn,
		Source:      models.SourcePOS,
		Status:      models.KitchenStatusPending,
		Items:       models.KitchenOrderItems{{ID: "i1", Name: "Bakso", Quantity: 1, Status: "pending"}},
	}
	applied, err := env.kitchen.Save(&order)
	require.NoError(t, err)
	require.True(t, applied)

	w := env.request(t, http.MethodPatch, "/orders/kds-1/status", gin.H{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.kitchen.Get("kds-1")
	require.NoError(t, err)
	assert.Equal(t, models.KitchenStatusInProgress, stored.Status)
}

func TestUpdateItemStatus(t *testing.T) {
	env := newTestEnv(t)

	order := models.KitchenOrder{
		ID:          "kds-1",
		OrderNumber: "A-100",
		OrderType:   models.OrderTypeDineIn,
		Source:      models.SourcePOS,
		Status:      models.KitchenStatusInProgress,
		Items: models.KitchenOrderItems{
			{ID: "i1", Name: "Bakso", Quantity: 1, Status: "pending"},
			{ID: "i2", Name: "Teh Manis", Quantity: 1, Status: "pending"},
		},
	}
	applied, err := env.kitchen.Save(&order)
	require.NoError(t, err)
	require.True(t, applied)

	w := env.request(t, http.MethodPatch, "/orders/kds-1/items/i2/status", gin.H{"status": "ready"})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.kitchen.Get("kds-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", stored.Items[0].Status)
	assert.Equal(t, "ready", stored.Items[1].Status)
}

func TestGetActiveMappings(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.mappings.Save(&models.OrderMapping{
		AggregatorOrderID: "agg-1",
		OrderNumber:       "A-100",
		Source:            models.SourcePlatformA,
		CurrentStatus:     models.MappingStatusPreparing,
		CreatedAt:         time.Now(),
	}))
	require.NoError(t, env.mappings.Save(&models.OrderMapping{
		AggregatorOrderID: "agg-2",
		OrderNumber:       "A-101",
		Source:            models.SourcePlatformB,
		CurrentStatus:     models.MappingStatusCompleted,
		CreatedAt:         time.Now(),
	}))

	w := env.request(t, http.MethodGet, "/mappings/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agg-1")
	assert.NotContains(t, w.Body.String(), "agg-2")
}

func TestStaffLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)

	hash, err := services.HashPIN("4321")
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&models.StaffUser{
		ID:        "staff-1",
		TenantID:  "tenant-1",
		Name:      "Dewi",
		Role:      "cashier",
		PINHash:   hash,
		IsActive:  true,
		CreatedAt: time.Now(),
	}).Error)

	w := env.request(t, http.MethodPost, "/staff/login", gin.H{"staff_id": "staff-1", "pin": "9999"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(t, http.MethodPost, "/staff/login", gin.H{"staff_id": "staff-1", "pin": "4321"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dewi")

	w = env.request(t, http.MethodGet, "/staff/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "staff-1")

	w = env.request(t, http.MethodPost, "/staff/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.request(t, http.MethodGet, "/staff/session", nil)
	assert.Contains(t, w.Body.String(), "no active session")
}

func TestSyncStatusAndRun(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sync_recommended":true`)

	w = env.request(t, http.MethodPost, "/sync/run?force=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = env.request(t, http.MethodGet, "/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sync_recommended":false`)
}

func TestConnectionStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/connection/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"disconnected"`)
}
