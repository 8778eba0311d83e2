package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/application"
	bookingDomain "github.com/chillcar/service-booking/internal/domain/booking"
	"github.com/chillcar/service-booking/internal/handler"
	"github.com/chillcar/service-booking/internal/platform/auth"
	"github.com/chillcar/service-booking/internal/platform/database"
	"github.com/chillcar/service-booking/internal/platform/database/dbtest"
	"github.com/chillcar/service-booking/internal/platform/middleware"
	"github.com/chillcar/service-booking/internal/repository"
)

type memoryRevocations map[string]bool

func (m memoryRevocations) Revoke(_ context.Context, id string, _ time.Duration) error {
	m[id] = true
	return nil
}

func (m memoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return m[id], nil
}

type nopRenderer struct{}

func (nopRenderer) Render(application.InvoiceDocument) ([]byte, error) { return []byte("xlsx"), nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message json.RawMessage `json:"message"`
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.NewSQLite(t, repository.Models()...)
	repos := application.Repositories{
		Bookings:       repository.NewGormBookingRepository(db),
		ChangeRequests: repository.NewGormChangeRequestRepository(db),
		Availability:   repository.NewGormAvailabilityChecker(db),
		Jobs:           repository.NewGormJobRepository(db),
		Catalog:        repository.NewGormCatalogRepository(db),
		Users:          repository.NewGormUserRepository(db),
		Quotes:         repository.NewGormQuoteRepository(db),
		Billings:       repository.NewGormBillingRepository(db),
		Notifications:  repository.NewGormNotificationRepository(db),
	}
	tx := database.NewTransactor(db)
	logger := zap.NewNop()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	revocations := memoryRevocations{}

	notifications := application.NewNotificationService(repos.Notifications, logger)
	notifier := application.NewDirectNotifier(notifications)
	bookings := application.NewBookingService(repos, tx, notifier, bookingDomain.DefaultServiceWindow(time.UTC), logger)
	billing := application.NewBillingService(repos, tx, notifier, nopRenderer{}, logger)
	users := application.NewUserService(repos, logger)
	authSvc := application.NewAuthService(repos.Users, jwtManager, revocations, logger)
	require.NoError(t, authSvc.EnsureAdmin(context.Background(), "Admin", "admin@example.com", "admin-password"))

	r := gin.New()
	api := r.Group("/api")
	authMW := middleware.AuthMiddleware(jwtManager, revocations)
	handler.NewAuthHandler(authSvc, false).RegisterRoutes(api, authMW)
	handler.NewAdminHandler(users, bookings).RegisterRoutes(api, authMW)
	handler.NewCarHandler(users).RegisterRoutes(api, authMW)
	handler.NewCatalogHandler(application.NewCatalogService(repos.Catalog, tx, logger)).RegisterRoutes(api, authMW)
	handler.NewBookingHandler(bookings, billing).RegisterRoutes(api, authMW)
	handler.NewJobHandler(application.NewJobService(repos, tx, notifier, logger)).RegisterRoutes(api, authMW)
	handler.NewBillingHandler(billing).RegisterRoutes(api, authMW)
	handler.NewNotificationHandler(notifications).RegisterRoutes(api, authMW)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any, cookie *http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.TokenCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", middleware.TokenCookie)
	return nil
}

func login(t *testing.T, r http.Handler, email, password string) *http.Cookie {
	t.Helper()
	w, _ := do(t, r, http.MethodPost, "/api/auth/login", gin.H{"email": email, "password": password}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookie(t, w)
}

func dataID(t *testing.T, env envelope) string {
	t.Helper()
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.NotEmpty(t, v.ID)
	return v.ID
}

func TestAuthCookieLifecycle(t *testing.T) {
	r := newRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/auth/register", gin.H{
		"name": "Aisyah", "email": "Aisyah@Example.com", "password": "secret-pass",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Positive(t, cookie.MaxAge)

	w, env = do(t, r, http.MethodGet, "/api/auth/current-user", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "aisyah@example.com")

	w, env = do(t, r, http.MethodGet, "/api/auth/get-token", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), cookie.Value)

	w, _ = do(t, r, http.MethodGet, "/api/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Negative(t, sessionCookie(t, w).MaxAge, "logout clears the cookie")

	w, env = do(t, r, http.MethodGet, "/api/auth/current-user", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "the old token is revoked")
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHORIZED", env.Error)

	w, env = do(t, r, http.MethodPost, "/api/auth/login", gin.H{"email": "aisyah@example.com", "password": "wrong-pass"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestRegisterValidationEnvelope(t *testing.T) {
	r := newRouter(t)

	w, env := do(t, r, http.MethodPost, "/api/auth/register", gin.H{"email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "VALIDATION_ERROR", env.Error)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Message, &fields))
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestBookingFlowOverHTTP(t *testing.T) {
	r := newRouter(t)
	admin := login(t, r, "admin@example.com", "admin-password")

	w, env := do(t, r, http.MethodPost, "/api/services", gin.H{"name": "Aircond gas refill", "priceCents": 8000, "durationMinutes": 45}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	serviceID := dataID(t, env)

	w, _ = do(t, r, http.MethodGet, "/api/services", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code, "the catalog is public")

	w, _ = do(t, r, http.MethodPost, "/api/admin/users", gin.H{
		"name": "Tech", "email": "tech@example.com", "password": "tech-password", "role": "TECHNICIAN",
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tech := login(t, r, "tech@example.com", "tech-password")

	var techs []struct {
		ID        string `json:"id"`
		Available bool   `json:"available"`
	}
	w, env = do(t, r, http.MethodGet, "/api/technicians", nil, tech)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &techs))
	require.Len(t, techs, 1)
	assert.True(t, techs[0].Available)

	book := func(email string) string {
		w, _ := do(t, r, http.MethodPost, "/api/auth/register", gin.H{"name": "Customer", "email": email, "password": "secret-pass"}, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		customer := sessionCookie(t, w)

		w, env := do(t, r, http.MethodPost, "/api/cars", gin.H{"make": "Perodua", "model": "Myvi", "year": 2021, "plateNumber": "VAB 1234"}, customer)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		carID := dataID(t, env)

		tomorrow := time.Now().UTC().AddDate(0, 0, 1)
		at := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 10, 0, 0, 0, time.UTC)
		w, env = do(t, r, http.MethodPost, "/api/bookings", gin.H{
			"carId": carID, "serviceIds": []string{serviceID}, "scheduledAt": at,
		}, customer)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var created []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &created))
		require.Len(t, created, 1)
		assert.Equal(t, "PENDING", created[0].Status)
		return created[0].ID
	}

	first := book("first@example.com")
	second := book("second@example.com")

	w, _ = do(t, r, http.MethodPatch, "/api/bookings/"+first+"/assign", gin.H{"technicianId": techs[0].ID}, tech)
	assert.Equal(t, http.StatusForbidden, w.Code, "only admins assign")

	w, _ = do(t, r, http.MethodPatch, "/api/bookings/"+first+"/assign", gin.H{"technicianId": techs[0].ID}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = do(t, r, http.MethodPatch, "/api/bookings/"+first+"/confirm", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"status":"CONFIRMED"`)

	// The confirmed booking's open job keeps the technician busy.
	w, env = do(t, r, http.MethodPatch, "/api/bookings/"+second+"/assign", gin.H{"technicianId": techs[0].ID}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BUSINESS_RULE_VIOLATION", env.Error)
	assert.Contains(t, string(env.Message), "not available")

	w, env = do(t, r, http.MethodGet, "/api/jobs", nil, tech)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	w, env = do(t, r, http.MethodGet, "/api/notifications/unread-count", nil, tech)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, string(env.Data), "assigned and confirmed")

	w, env = do(t, r, http.MethodGet, "/api/bookings/not-a-uuid", nil, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error)

	w, _ = do(t, r, http.MethodGet, "/api/admin/stats/bookings", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/admin/stats/bookings", nil, tech)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/bookings", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
