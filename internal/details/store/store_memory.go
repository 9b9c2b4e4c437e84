package store

import (
	"context"
	"sync"

	"empgate/internal/details/models"
	"empgate/pkg/sentinel"
)

// InMemoryEmployeeStore backs dev mode and tests.
type InMemoryEmployeeStore struct {
	mu        sync.RWMutex
	employees map[string]*models.Employee
}

func NewInMemoryEmployeeStore() *InMemoryEmployeeStore {
	return &InMemoryEmployeeStore{employees: make(map[string]*models.Employee)}
}

func (s *InMemoryEmployeeStore) FindByID(_ context.Context, id string) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.employees[id]; ok {
		return e.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryEmployeeStore) Save(_ context.Context, e *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e.Clone()
	return nil
}

func (s *InMemoryEmployeeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.employees, id)
	return nil
}
