// Package localstore keeps customer records in a JSON file on local disk.
// The file has the shape of the browser-storage export of the web client,
// so it doubles as the source of the local-to-hosted migration.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/boddenberg/customer-registry-bff/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileStore implements port.CustomerStore and port.CustomerSource.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
	now    func() time.Time
}

// New creates a FileStore at path. The file is created on first write.
func New(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger, now: time.Now}
}

// load reads all records. A missing file holds no records. Callers hold mu.
func (s *FileStore) load() ([]domain.Customer, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Customer{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []domain.Customer{}, nil
	}

	var customers []domain.Customer
	if err := json.Unmarshal(data, &customers); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	return customers, nil
}

// save replaces the file atomically. Callers hold mu.
func (s *FileStore) save(customers []domain.Customer) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	data, err := json.MarshalIndent(customers, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding customers: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".customers-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

func storeError(err error) error {
	return &domain.ErrExternalService{Service: "localstore", Err: err}
}

// ListCustomers returns all records, newest first.
func (s *FileStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.load()
	if err != nil {
		return nil, storeError(err)
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].RegisteredAt.After(customers[j].RegisteredAt)
	})
	return customers, nil
}

func (s *FileStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.load()
	if err != nil {
		return nil, storeError(err)
	}
	for i := range customers {
		if customers[i].ID == id {
			c := customers[i]
			return &c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
}

// CreateCustomer assigns an id and registration time when missing.
// A record with an existing id replaces it.
func (s *FileStore) CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.load()
	if err != nil {
		return nil, storeError(err)
	}

	created := *c
	if created.ID == "" {
		created.ID = uuid.New().String()
	}
	if created.RegisteredAt.IsZero() {
		created.RegisteredAt = s.now().UTC()
	}

	replaced := false
	for i := range customers {
		if customers[i].ID == created.ID {
			customers[i] = created
			replaced = true
			break
		}
	}
	if !replaced {
		customers = append(customers, created)
	}

	if err := s.save(customers); err != nil {
		return nil, storeError(err)
	}
	s.logger.Debug("localstore: customer saved", zap.String("customer_id", created.ID))
	return &created, nil
}

func (s *FileStore) UpdateCustomer(ctx context.Context, id string, patch *domain.CustomerPatch) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.load()
	if err != nil {
		return nil, storeError(err)
	}
	for i := range customers {
		if customers[i].ID != id {
			continue
		}
		patch.Apply(&customers[i])
		if err := s.save(customers); err != nil {
			return nil, storeError(err)
		}
		updated := customers[i]
		return &updated, nil
	}
	return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
}

// DeleteCustomer succeeds when no record has id.
func (s *FileStore) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers, err := s.load()
	if err != nil {
		return storeError(err)
	}
	kept := customers[:0]
	for _, c := range customers {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(customers) {
		return nil
	}
	if err := s.save(kept); err != nil {
		return storeError(err)
	}
	return nil
}

// Clear removes the file. Clearing an absent file succeeds.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storeError(fmt.Errorf("removing %s: %w", s.path, err))
	}
	s.logger.Info("localstore: cleared", zap.String("path", s.path))
	return nil
}
