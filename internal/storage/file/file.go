package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/MikhailRaia/paylink/internal/generator"
	"github.com/MikhailRaia/paylink/internal/model"
	"github.com/MikhailRaia/paylink/internal/storage"
)

// Storage implements LinkStorage backed by an append-only JSONL journal.
// Every change appends the full link; on start the last record per id wins.
type Storage struct {
	filePath    string
	links       map[string]model.PaymentLink
	codeIndex   map[string]string
	userLinks   map[string][]string
	idCounter   int
	mu          sync.RWMutex
	fileWriteMu sync.Mutex
}

// NewStorage creates a file-backed storage at the provided path.
func NewStorage(filePath string) (*Storage, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	s := &Storage{
		filePath:  filePath,
		links:     make(map[string]model.PaymentLink),
		codeIndex: make(map[string]string),
		userLinks: make(map[string][]string),
	}

	if err := s.loadFromFile(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Storage) Save(_ context.Context, link model.PaymentLink) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	if err := s.appendLocked(link); err != nil {
		return "", err
	}

	s.index(link)
	return id, nil
}

func (s *Storage) Get(_ context.Context, id string) (model.PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, found := s.links[id]
	if !found {
		return model.PaymentLink{}, storage.ErrLinkNotFound
	}

	return link, nil
}

func (s *Storage) GetByCode(_ context.Context, code string) (model.PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, found := s.codeIndex[code]
	if !found {
		return model.PaymentLink{}, storage.ErrLinkNotFound
	}

	return s.links[id], nil
}

func (s *Storage) UpdateStatus(_ context.Context, code string, from, to model.LinkStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, found := s.codeIndex[code]
	if !found {
		return storage.ErrLinkNotFound
	}

	link := s.links[id]
	if link.Status != from {
		return storage.ErrStatusConflict
	}

	link.Status = to
	if err := s.appendLocked(link); err != nil {
		return err
	}

	s.links[id] = link
	return nil
}

func (s *Storage) GetUserLinks(_ context.Context, userID string) ([]model.PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userLinks[userID]
	result := make([]model.PaymentLink, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.links[id])
	}

	return result, nil
}

func (s *Storage) CancelUserLinks(_ context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		link, found := s.links[id]
		if !found || link.UserID != userID || link.Status != model.StatusPending {
			continue
		}

		link.Status = model.StatusCancelled
		if err := s.appendLocked(link); err != nil {
			return fmt.Errorf("failed to save cancellation record: %w", err)
		}
		s.links[id] = link
	}

	return nil
}

func (s *Storage) GetStats(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.links), len(s.userLinks), nil
}

// index must be called with mu held.
func (s *Storage) index(link model.PaymentLink) {
	if _, known := s.links[link.ID]; !known {
		s.codeIndex[link.Code] = link.ID
		if link.UserID != "" {
			s.userLinks[link.UserID] = append(s.userLinks[link.UserID], link.ID)
		}
	}
	s.links[link.ID] = link
}

func (s *Storage) loadFromFile() error {
	file, err := os.OpenFile(s.filePath, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	maxID := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record model.LinkRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}

		s.index(record.PaymentLink)

		if id, err := strconv.Atoi(record.UUID); err == nil && id > maxID {
			maxID = id
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	s.idCounter = maxID
	return nil
}

// appendLocked writes link to the journal; mu must be held.
func (s *Storage) appendLocked(link model.PaymentLink) error {
	s.fileWriteMu.Lock()
	defer s.fileWriteMu.Unlock()

	s.idCounter++
	record := model.LinkRecord{
		UUID:        strconv.Itoa(s.idCounter),
		PaymentLink: link,
	}

	file, err := os.OpenFile(s.filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file for writing: %w", err)
	}
	defer file.Close()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}

	return nil
}
