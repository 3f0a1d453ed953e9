// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations (Supabase, Postgres, local file, ViaCEP).
package port

import (
	"context"

	"github.com/boddenberg/customer-registry-bff/internal/domain"
)

// IdentityStore is the hosted identity provider. It owns credentials and sessions.
type IdentityStore interface {
	// CreateAccount returns *domain.ErrIdentity when the provider rejects the request.
	CreateAccount(ctx context.Context, email, password string, metadata map[string]any) (*domain.Account, error)
	// DeleteAccount returns *domain.ErrNotFound when no such account exists.
	DeleteAccount(ctx context.Context, id string) error
	// CurrentSession resolves a bearer token; *domain.ErrUnauthorized when it is not valid.
	CurrentSession(ctx context.Context, accessToken string) (*domain.Account, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileStore is the profiles table.
type ProfileStore interface {
	InsertProfile(ctx context.Context, p *domain.Profile) error
	// GetProfile returns nil, nil when the row is absent.
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	// DeleteProfile succeeds when the row is already absent.
	DeleteProfile(ctx context.Context, id string) error
}

// RoleStore is the user_roles table, unique on user_id.
type RoleStore interface {
	// GetRole returns nil, nil when the user has no role assignment.
	GetRole(ctx context.Context, userID string) (*domain.RoleAssignment, error)
	ListRoles(ctx context.Context) ([]domain.RoleAssignment, error)
	// UpsertRole overwrites any existing assignment for userID.
	UpsertRole(ctx context.Context, userID string, role domain.Role) error
	// DeleteRole succeeds when the row is already absent.
	DeleteRole(ctx context.Context, userID string) error
}

// CustomerStore is the storage port for customer records.
type CustomerStore interface {
	// ListCustomers returns records ordered by registration time, newest first.
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, id string, patch *domain.CustomerPatch) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}

// CustomerSource is a store whose records can be drained by a migration.
type CustomerSource interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	Clear(ctx context.Context) error
}

// PostalCodeLookup resolves an 8-digit postal code into an address.
type PostalCodeLookup interface {
	// Lookup returns *domain.ErrPostalCodeNotFound when the code is unknown.
	Lookup(ctx context.Context, postalCode string) (*domain.PostalAddress, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
