package handler_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
	"github.com/boddenberg/customer-registry-bff/internal/handler"
	"github.com/boddenberg/customer-registry-bff/internal/infra/cache"
	"github.com/boddenberg/customer-registry-bff/internal/infra/localstore"
	"github.com/boddenberg/customer-registry-bff/internal/infra/observability"
	"github.com/boddenberg/customer-registry-bff/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errDown = errors.New("connection refused")

// memBackend plays identity provider, profiles and user_roles.
// Access tokens are account ids.
type memBackend struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	profiles map[string]domain.Profile
	roles    map[string]domain.Role

	identityCalls int
	upsertRoleErr error
	getRoleErr    error
}

func newMemBackend() *memBackend {
	return &memBackend{
		accounts: map[string]domain.Account{},
		profiles: map[string]domain.Profile{},
		roles:    map[string]domain.Role{},
	}
}

// seed registers an account with a role and returns its token.
func (m *memBackend) seed(email string, role domain.Role) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.accounts[id] = domain.Account{ID: id, Email: email}
	m.profiles[id] = domain.Profile{ID: id, Email: email, DisplayName: email, CreatedAt: time.Now()}
	if role != "" {
		m.roles[id] = role
	}
	return id
}

func (m *memBackend) CreateAccount(_ context.Context, email, _ string, _ map[string]any) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identityCalls++
	for _, a := range m.accounts {
		if a.Email == email {
			return nil, &domain.ErrIdentity{Kind: domain.IdentityAlreadyRegistered, Message: "User already registered"}
		}
	}
	acc := domain.Account{ID: uuid.New().String(), Email: email}
	m.accounts[acc.ID] = acc
	return &acc, nil
}

func (m *memBackend) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identityCalls++
	if _, ok := m.accounts[id]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	delete(m.accounts, id)
	return nil
}

func (m *memBackend) CurrentSession(_ context.Context, token string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[token]; ok {
		return &a, nil
	}
	return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
}

func (m *memBackend) SignIn(_ context.Context, email, password string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email && password == "secret1" {
			return &domain.Session{AccessToken: a.ID, Account: a, ExpiresAt: time.Now().Add(time.Hour)}, nil
		}
	}
	return nil, &domain.ErrUnauthorized{Message: "Email ou senha inválidos"}
}

func (m *memBackend) SignOut(context.Context, string) error { return nil }

func (m *memBackend) InsertProfile(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *p
	row.CreatedAt = time.Now()
	m.profiles[p.ID] = row
	return nil
}

func (m *memBackend) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memBackend) ListProfiles(context.Context) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *memBackend) DeleteProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
	return nil
}

func (m *memBackend) GetRole(_ context.Context, userID string) (*domain.RoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getRoleErr != nil {
		return nil, m.getRoleErr
	}
	r, ok := m.roles[userID]
	if !ok {
		return nil, nil
	}
	return &domain.RoleAssignment{UserID: userID, Role: r}, nil
}

func (m *memBackend) ListRoles(context.Context) ([]domain.RoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RoleAssignment, 0, len(m.roles))
	for id, r := range m.roles {
		out = append(out, domain.RoleAssignment{UserID: id, Role: r})
	}
	return out, nil
}

func (m *memBackend) UpsertRole(_ context.Context, userID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertRoleErr != nil {
		return m.upsertRoleErr
	}
	m.roles[userID] = role
	return nil
}

func (m *memBackend) DeleteRole(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, userID)
	return nil
}

type stubLookup struct {
	addr *domain.PostalAddress
	err  error
}

func (s stubLookup) Lookup(context.Context, string) (*domain.PostalAddress, error) {
	return s.addr, s.err
}

type testEnv struct {
	backend *memBackend
	local   *localstore.FileStore
	hosted  *localstore.FileStore
	router  http.Handler
	admin   string
	oper    string
}

func newTestEnv(t *testing.T, lookup stubLookup) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	backend := newMemBackend()
	dir := t.TempDir()
	local := localstore.New(filepath.Join(dir, "local.json"), logger)
	hosted := localstore.New(filepath.Join(dir, "hosted.json"), logger)

	postalCache := cache.New[*domain.PostalAddress](time.Minute)
	t.Cleanup(postalCache.Close)

	resolver := service.NewRoleResolver(backend, logger)
	env := &testEnv{
		backend: backend,
		local:   local,
		hosted:  hosted,
		admin:   backend.seed("admin@example.com", domain.RoleAdmin),
		oper:    backend.seed("op@example.com", ""),
	}
	env.router = handler.NewRouter(handler.Deps{
		Sessions:        service.NewSessionService(backend, resolver, "", logger),
		Roles:           resolver,
		Provisioner:     service.NewProvisioner(backend, backend, backend, metrics, logger),
		Customers:       service.NewCustomerService(hosted, metrics, logger),
		Postal:          service.NewPostalService(lookup, postalCache, metrics, logger),
		Migrator:        service.NewMigrator(metrics, logger),
		LocalSource:     local,
		MigrationTarget: hosted,
		Backend:         "local",
		Metrics:         metrics,
		Logger:          logger,
	})
	return env
}
