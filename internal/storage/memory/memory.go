package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MikhailRaia/paylink/internal/generator"
	"github.com/MikhailRaia/paylink/internal/model"
	"github.com/MikhailRaia/paylink/internal/storage"
)

// Storage implements in-memory LinkStorage for testing and development.
type Storage struct {
	links     map[string]model.PaymentLink
	codeIndex map[string]string
	userLinks map[string][]string
	mutex     sync.RWMutex
}

// NewStorage creates a new in-memory storage instance.
func NewStorage() *Storage {
	return &Storage{
		links:     make(map[string]model.PaymentLink),
		codeIndex: make(map[string]string),
		userLinks: make(map[string][]string),
	}
}

// Save registers a link and returns its generated id.
func (s *Storage) Save(_ context.Context, link model.PaymentLink) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existingID, exists := s.codeIndex[link.Code]; exists {
		return existingID, storage.ErrLinkExists
	}

	id, err := generator.GenerateID(generator.LinkIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}

	link.ID = id
	if link.Status == "" {
		link.Status = model.StatusPending
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	s.links[id] = link
	s.codeIndex[link.Code] = id
	if link.UserID != "" {
		s.userLinks[link.UserID] = append(s.userLinks[link.UserID], id)
	}

	return id, nil
}

// Get returns the link with the given id.
func (s *Storage) Get(_ context.Context, id string) (model.PaymentLink, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	link, found := s.links[id]
	if !found {
		return model.PaymentLink{}, storage.ErrLinkNotFound
	}

	return link, nil
}

// GetByCode returns the link registered for code.
func (s *Storage) GetByCode(_ context.Context, code string) (model.PaymentLink, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, found := s.codeIndex[code]
	if !found {
		return model.PaymentLink{}, storage.ErrLinkNotFound
	}

	return s.links[id], nil
}

// UpdateStatus moves a link from one status to another.
func (s *Storage) UpdateStatus(_ context.Context, code string, from, to model.LinkStatus) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id, found := s.codeIndex[code]
	if !found {
		return storage.ErrLinkNotFound
	}

	link := s.links[id]
	if link.Status != from {
		return storage.ErrStatusConflict
	}

	link.Status = to
	s.links[id] = link
	return nil
}

// GetUserLinks returns the links issued by a user in creation order.
func (s *Storage) GetUserLinks(_ context.Context, userID string) ([]model.PaymentLink, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := s.userLinks[userID]
	result := make([]model.PaymentLink, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.links[id])
	}

	return result, nil
}

// CancelUserLinks cancels pending links of a user. Unknown ids and links of
// other users are skipped.
func (s *Storage) CancelUserLinks(_ context.Context, userID string, ids []string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, id := range ids {
		link, found := s.links[id]
		if !found || link.UserID != userID || link.Status != model.StatusPending {
			continue
		}
		link.Status = model.StatusCancelled
		s.links[id] = link
	}

	return nil
}

// GetStats returns total number of links and users.
func (s *Storage) GetStats(_ context.Context) (int, int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.links), len(s.userLinks), nil
}
