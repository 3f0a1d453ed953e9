package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"github.com/google/uuid"
)

var errStoreDown = errors.New("connection refused")

// --- Identity store ---

type fakeIdentity struct {
	mu        sync.Mutex
	accounts  map[string]domain.Account // by id
	createErr error
	deleteErr error
	calls     int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: map[string]domain.Account{}}
}

func (f *fakeIdentity) CreateAccount(_ context.Context, email, _ string, metadata map[string]any) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, a := range f.accounts {
		if a.Email == email {
			return nil, &domain.ErrIdentity{Kind: domain.IdentityAlreadyRegistered, Message: "User already registered"}
		}
	}
	nome, _ := metadata["nome"].(string)
	acc := domain.Account{ID: uuid.New().String(), Email: email, DisplayName: nome}
	f.accounts[acc.ID] = acc
	return &acc, nil
}

func (f *fakeIdentity) DeleteAccount(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.accounts[id]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: id}
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeIdentity) CurrentSession(_ context.Context, token string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[token]; ok {
		return &acc, nil
	}
	return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
}

func (f *fakeIdentity) SignIn(_ context.Context, email, password string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email && password == "secret1" {
			return &domain.Session{AccessToken: a.ID, Account: a, ExpiresAt: time.Now().Add(time.Hour)}, nil
		}
	}
	return nil, &domain.ErrUnauthorized{Message: "Email ou senha inválidos"}
}

func (f *fakeIdentity) SignOut(context.Context, string) error { return nil }

func (f *fakeIdentity) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[id]
	return ok
}

// --- profiles + user_roles ---

type fakeTables struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	roles    map[string]domain.Role

	insertProfileErr error
	upsertRoleErr    error
	getRoleErr       error
	listErr          error
	deleteErr        error
	calls            int
}

func newFakeTables() *fakeTables {
	return &fakeTables{profiles: map[string]domain.Profile{}, roles: map[string]domain.Role{}}
}

func (f *fakeTables) InsertProfile(_ context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.insertProfileErr != nil {
		return f.insertProfileErr
	}
	row := *p
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	f.profiles[p.ID] = row
	return nil
}

func (f *fakeTables) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeTables) ListProfiles(context.Context) ([]domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeTables) DeleteProfile(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.profiles, id)
	return nil
}

func (f *fakeTables) GetRole(_ context.Context, userID string) (*domain.RoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getRoleErr != nil {
		return nil, f.getRoleErr
	}
	r, ok := f.roles[userID]
	if !ok {
		return nil, nil
	}
	return &domain.RoleAssignment{UserID: userID, Role: r}, nil
}

func (f *fakeTables) ListRoles(context.Context) ([]domain.RoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.RoleAssignment, 0, len(f.roles))
	for id, r := range f.roles {
		out = append(out, domain.RoleAssignment{UserID: id, Role: r})
	}
	return out, nil
}

func (f *fakeTables) UpsertRole(_ context.Context, userID string, role domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.upsertRoleErr != nil {
		return f.upsertRoleErr
	}
	f.roles[userID] = role
	return nil
}

func (f *fakeTables) DeleteRole(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.roles, userID)
	return nil
}

// --- customers ---

type fakeCustomers struct {
	mu        sync.Mutex
	rows      map[string]domain.Customer
	createErr func(c *domain.Customer) error
	listErr   error
	cleared   bool
	clearErr  error
}

func newFakeCustomers(seed ...domain.Customer) *fakeCustomers {
	f := &fakeCustomers{rows: map[string]domain.Customer{}}
	for _, c := range seed {
		f.rows[c.ID] = c
	}
	return f
}

func (f *fakeCustomers) ListCustomers(context.Context) ([]domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Customer, 0, len(f.rows))
	for _, c := range f.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (f *fakeCustomers) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	return &c, nil
}

func (f *fakeCustomers) CreateCustomer(_ context.Context, c *domain.Customer) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		if err := f.createErr(c); err != nil {
			return nil, err
		}
	}
	row := *c
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	f.rows[row.ID] = row
	return &row, nil
}

func (f *fakeCustomers) UpdateCustomer(_ context.Context, id string, patch *domain.CustomerPatch) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	patch.Apply(&c)
	f.rows[id] = c
	return &c, nil
}

func (f *fakeCustomers) DeleteCustomer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeCustomers) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.rows = map[string]domain.Customer{}
	f.cleared = true
	return nil
}

// --- postal lookup ---

type fakeLookup struct {
	addr  *domain.PostalAddress
	err   error
	calls int
}

func (f *fakeLookup) Lookup(_ context.Context, _ string) (*domain.PostalAddress, error) {
	f.calls++
	return f.addr, f.err
}

var (
	admin    = domain.Caller{UserID: "admin-1", Role: domain.RoleAdmin, RoleResolved: true}
	operator = domain.Caller{UserID: "op-1", Role: domain.RoleOperator, RoleResolved: true}
)
