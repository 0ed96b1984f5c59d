package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jordanlanch/crmleads/pkg/auth"
	"github.com/jordanlanch/crmleads/pkg/cache"
	"github.com/jordanlanch/crmleads/pkg/database"
	"github.com/jordanlanch/crmleads/pkg/leadassignment"
	"github.com/jordanlanch/crmleads/pkg/metrics"
	"github.com/jordanlanch/crmleads/pkg/models"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/jordanlanch/crmleads/pkg/verification"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-secret-key-minimum-32-characters-long"
	testPassword = "correct-horse-battery"
)

var t0 = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

// codeSpy captures mailed verification codes.
type codeSpy struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *codeSpy) SendVerificationCode(toEmail, _, code string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[toEmail] = code
	return nil
}

func (s *codeSpy) last(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type apiFixture struct {
	e       *echo.Echo
	store   *database.Store
	sender  *codeSpy
	metrics *metrics.Metrics
}

// setupAPI mounts the full route table on a fresh in-memory database seeded
// with one user per role plus a second salesperson.
func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := database.NewClient(ctx, "sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=UTC", name), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	store := database.NewStore(client)

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	for _, u := range []struct {
		id     string
		role   rbac.Role
		status models.UserStatus
	}{
		{"admin", rbac.RoleAdmin, models.UserStatusActive},
		{"mgr", rbac.RoleManager, models.UserStatusActive},
		{"s1", rbac.RoleSales, models.UserStatusActive},
		{"s2", rbac.RoleSales, models.UserStatusActive},
		{"viewer", rbac.RoleViewer, models.UserStatusActive},
		{"gone", rbac.RoleSales, models.UserStatusInactive},
	} {
		require.NoError(t, store.CreateUser(ctx, &models.User{
			ID:           u.id,
			Email:        u.id + "@crm.test",
			FirstName:    "User",
			LastName:     u.id,
			PasswordHash: hash,
			Role:         u.role,
			Status:       u.status,
			CreatedAt:    t0,
			UpdatedAt:    t0,
		}))
	}

	clk := clockwork.NewFakeClockAt(t0)
	m := metrics.New(prometheus.NewRegistry())
	sender := &codeSpy{}
	memory := cache.NewMemoryStore(clk)

	e := echo.New()
	RegisterRoutes(e, Deps{
		Assignments: leadassignment.NewService(store, leadassignment.Options{Clock: clk, Recorder: m}),
		Rules:       leadassignment.NewRuleService(store, clk, nil),
		Users:       store,
		Codes:       verification.NewService(memory, sender, 10*time.Minute, nil),
		Blacklist:   auth.NewTokenBlacklist(memory),
		Auth:        AuthConfig{JWTSecret: testSecret, JWTExpirationHours: 1},
		Recorder:    m,
	})

	return &apiFixture{e: e, store: store, sender: sender, metrics: m}
}

func (f *apiFixture) seedLead(t *testing.T, id string) {
	t.Helper()
	value := 5000.0
	require.NoError(t, f.store.CreateLead(context.Background(), &models.Lead{
		ID:        id,
		FirstName: "Lead",
		LastName:  id,
		Email:     id + "@prospect.test",
		Source:    models.SourceReferral,
		Status:    models.LeadStatusNew,
		Priority:  models.PriorityMedium,
		Value:     &value,
		CreatedAt: t0,
		UpdatedAt: t0,
	}))
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	// The role claim is irrelevant: the stored role is authoritative.
	token, err := auth.GenerateJWT(userID, userID+"@crm.test", rbac.RoleViewer, testSecret, 1)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

// as issues a request authenticated as userID.
func (f *apiFixture) as(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, method, path, tokenFor(t, userID), body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[models.ErrorResponse](t, rec).Error
}

func requireStatus(t *testing.T, want int, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}
