package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/handler"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/infra/resilience"
	"github.com/boddenberg/customer-registry-bff/internal/infra/supabase"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSupabase emulates the GoTrue and PostgREST endpoints the registry calls.
// Access tokens are "token-<account id>".
type fakeSupabase struct {
	mu       sync.Mutex
	accounts map[string]map[string]any // id -> user
	emails   map[string]string         // email -> id
	profiles map[string]map[string]any
	roles    map[string]string

	failRoleWrites bool
	calls          []string
}

func newFakeSupabase() *fakeSupabase {
	return &fakeSupabase{
		accounts: map[string]map[string]any{},
		emails:   map[string]string{},
		profiles: map[string]map[string]any{},
		roles:    map[string]string{},
	}
}

func (f *fakeSupabase) seedAdmin(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.accounts[id] = map[string]any{"id": id, "email": email, "user_metadata": map[string]any{"nome": "Admin"}}
	f.emails[email] = id
	f.roles[id] = "admin"
	return "token-" + id
}

func (f *fakeSupabase) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSupabase) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeSupabase) setFailRoleWrites(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRoleWrites = v
}

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (f *fakeSupabase) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/v1/health", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]string{"name": "GoTrue"})
	})

	mux.HandleFunc("GET /auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := strings.TrimPrefix(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "), "token-")
		u, ok := f.accounts[id]
		if !ok {
			reply(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
			return
		}
		reply(w, http.StatusOK, u)
	})

	mux.HandleFunc("POST /auth/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email        string         `json:"email"`
			Password     string         `json:"password"`
			UserMetadata map[string]any `json:"user_metadata"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, "create-account")
		if _, exists := f.emails[body.Email]; exists {
			reply(w, http.StatusUnprocessableEntity, map[string]string{
				"error_code": "email_exists",
				"msg":        "A user with this email address has already been registered",
			})
			return
		}
		id := uuid.NewString()
		u := map[string]any{"id": id, "email": body.Email, "user_metadata": body.UserMetadata}
		f.accounts[id] = u
		f.emails[body.Email] = id
		reply(w, http.StatusOK, u)
	})

	mux.HandleFunc("DELETE /auth/v1/admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		f.calls = append(f.calls, "delete-account")
		u, ok := f.accounts[id]
		if !ok {
			reply(w, http.StatusNotFound, map[string]string{"msg": "User not found"})
			return
		}
		delete(f.emails, u["email"].(string))
		delete(f.accounts, id)
		reply(w, http.StatusOK, map[string]any{})
	})

	mux.HandleFunc("/rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
		switch r.Method {
		case http.MethodPost:
			var row map[string]any
			json.NewDecoder(r.Body).Decode(&row)
			row["created_at"] = time.Now().UTC()
			f.profiles[row["id"].(string)] = row
			f.calls = append(f.calls, "insert-profile")
			reply(w, http.StatusCreated, []any{row})
		case http.MethodGet:
			rows := []any{}
			for pid, row := range f.profiles {
				if id == "" || id == pid {
					rows = append(rows, row)
				}
			}
			reply(w, http.StatusOK, rows)
		case http.MethodDelete:
			delete(f.profiles, id)
			f.calls = append(f.calls, "delete-profile")
			w.WriteHeader(http.StatusNoContent)
		}
	})

	mux.HandleFunc("/rest/v1/user_roles", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		userID := strings.TrimPrefix(r.URL.Query().Get("user_id"), "eq.")
		switch r.Method {
		case http.MethodPost:
			f.calls = append(f.calls, "upsert-role")
			if f.failRoleWrites {
				reply(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
				return
			}
			if r.URL.Query().Get("on_conflict") != "user_id" {
				reply(w, http.StatusConflict, map[string]string{"message": "duplicate key"})
				return
			}
			var row struct {
				UserID string `json:"user_id"`
				Role   string `json:"role"`
			}
			json.NewDecoder(r.Body).Decode(&row)
			f.roles[row.UserID] = row.Role
			reply(w, http.StatusCreated, []any{row})
		case http.MethodGet:
			rows := []map[string]string{}
			for uid, role := range f.roles {
				if userID == "" || userID == uid {
					rows = append(rows, map[string]string{"user_id": uid, "role": role})
				}
			}
			reply(w, http.StatusOK, rows)
		case http.MethodDelete:
			delete(f.roles, userID)
			f.calls = append(f.calls, "delete-role")
			w.WriteHeader(http.StatusNoContent)
		}
	})

	mux.HandleFunc("/rest/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
		if id != "" && uuid.Validate(id) != nil {
			reply(w, http.StatusBadRequest, map[string]string{
				"code":    "22P02",
				"message": `invalid input syntax for type uuid: "` + id + `"`,
			})
			return
		}
		reply(w, http.StatusOK, []any{})
	})

	return mux
}

func newRegistry(t *testing.T, fake *fakeSupabase) http.Handler {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	rc := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 10}
	sb := supabase.NewClient(
		srv.Client(),
		supabase.Options{BaseURL: srv.URL, AnonKey: "anon", ServiceRoleKey: "service"},
		resilience.NewCircuitBreaker("supabase-it", supabase.IsSuccessful),
		resilience.NewBulkhead(rc.MaxConcurrency),
		rc,
		logger,
	)

	roles := service.NewRoleResolver(sb, logger)
	return handler.NewRouter(handler.Deps{
		Sessions:    service.NewSessionService(sb, roles, "", logger),
		Roles:       roles,
		Provisioner: service.NewProvisioner(sb, sb, sb, metrics, logger),
		Customers:   service.NewCustomerService(sb.UserScoped(), metrics, logger),
		Migrator:    service.NewMigrator(metrics, logger),
		Backend:     "supabase",
		Probes:      []domain.Probe{{Name: "supabase", Check: sb.Ping}},
		Metrics:     metrics,
		Logger:      logger,
	})
}

func post(t *testing.T, h http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type createUserBody struct {
	Success bool `json:"success"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Nome  string `json:"nome"`
		Role  string `json:"role"`
	} `json:"user"`
	Warning string `json:"warning"`
	Error   string `json:"error"`
}

// TestIntegration_ProvisionAndRemove drives both privileged endpoints against
// the emulated Supabase project.
func TestIntegration_ProvisionAndRemove(t *testing.T) {
	fake := newFakeSupabase()
	adminToken := fake.seedAdmin("admin@example.com")
	h := newRegistry(t, fake)

	rec := post(t, h, "/functions/v1/admin-create-user", adminToken, map[string]string{
		"email": "maria@example.com", "password": "secret1", "nome": "Maria", "role": "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created createUserBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Empty(t, created.Warning)
	assert.Equal(t, "maria@example.com", created.User.Email)
	assert.Equal(t, "admin", created.User.Role)
	assert.Equal(t, []string{"create-account", "insert-profile", "upsert-role"}, fake.recorded())

	// The new admin can act right away.
	rec = post(t, h, "/functions/v1/admin-create-user", "token-"+created.User.ID, map[string]string{
		"email": "joao@example.com", "password": "secret1", "nome": "João", "role": "operator",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Duplicate email.
	rec = post(t, h, "/functions/v1/admin-create-user", adminToken, map[string]string{
		"email": "maria@example.com", "password": "secret1", "nome": "Maria", "role": "operator",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	fake.reset()
	rec = post(t, h, "/functions/v1/admin-delete-user", adminToken, map[string]string{"userId": created.User.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, []string{"delete-account", "delete-role", "delete-profile"}, fake.recorded())

	fake.mu.Lock()
	assert.NotContains(t, fake.accounts, created.User.ID)
	assert.NotContains(t, fake.profiles, created.User.ID)
	assert.NotContains(t, fake.roles, created.User.ID)
	fake.mu.Unlock()

	// Removing again still succeeds.
	rec = post(t, h, "/functions/v1/admin-delete-user", adminToken, map[string]string{"userId": created.User.ID})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The removed account's token no longer authenticates.
	rec = post(t, h, "/functions/v1/admin-create-user", "token-"+created.User.ID, map[string]string{
		"email": "x@example.com", "password": "secret1", "nome": "X", "role": "operator",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntegration_RoleWriteFailureWarns(t *testing.T) {
	fake := newFakeSupabase()
	adminToken := fake.seedAdmin("admin@example.com")
	h := newRegistry(t, fake)

	fake.setFailRoleWrites(true)
	rec := post(t, h, "/functions/v1/admin-create-user", adminToken, map[string]string{
		"email": "ana@example.com", "password": "secret1", "nome": "Ana", "role": "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created createUserBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Contains(t, created.Warning, "permissões")
	assert.Equal(t, "operator", created.User.Role)

	// Without a role row the account resolves to operator and is refused.
	rec = post(t, h, "/functions/v1/admin-delete-user", "token-"+created.User.ID, map[string]string{"userId": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acesso restrito a administradores")
}

func TestIntegration_NonAdminRejectedBeforeAnyWrite(t *testing.T) {
	fake := newFakeSupabase()
	adminToken := fake.seedAdmin("admin@example.com")
	h := newRegistry(t, fake)

	rec := post(t, h, "/functions/v1/admin-create-user", adminToken, map[string]string{
		"email": "op@example.com", "password": "secret1", "nome": "Op", "role": "operator",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created createUserBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	fake.reset()
	rec = post(t, h, "/functions/v1/admin-create-user", "token-"+created.User.ID, map[string]string{
		"email": "other@example.com", "password": "secret1", "nome": "Other", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fake.recorded())

	rec = post(t, h, "/functions/v1/admin-create-user", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntegration_CustomerRejectionIsShownInline(t *testing.T) {
	fake := newFakeSupabase()
	adminToken := fake.seedAdmin("admin@example.com")
	h := newRegistry(t, fake)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		req := httptest.NewRequest(method, "/v1/customers/abc", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		assert.Contains(t, rec.Body.String(), "invalid input syntax for type uuid", method)
		assert.NotContains(t, rec.Body.String(), "Tente novamente", method)
	}
}

func TestIntegration_Readiness(t *testing.T) {
	h := newRegistry(t, newFakeSupabase())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var status domain.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "supabase", status.Backend)
	require.Len(t, status.Services, 1)
	assert.Equal(t, "supabase", status.Services[0].Name)
}
