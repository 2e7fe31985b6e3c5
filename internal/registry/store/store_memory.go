package store

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"certledger/internal/registry/models"
	"certledger/pkg/platform/sentinel"
)

// InMemoryStore keeps all four tables in maps behind a single RWMutex.
// Used in tests and for local development.
type InMemoryStore struct {
	mu sync.RWMutex

	roles     map[common.Address]models.Role
	documents map[string]models.Document
	requests  map[common.Hash]models.VerificationRequest

	docsByRecipient map[common.Address][]string
	docsByIssuer    map[common.Address][]string
	requestsByDoc   map[string][]common.Hash
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		roles:           make(map[common.Address]models.Role),
		documents:       make(map[string]models.Document),
		requests:        make(map[common.Hash]models.VerificationRequest),
		docsByRecipient: make(map[common.Address][]string),
		docsByIssuer:    make(map[common.Address][]string),
		requestsByDoc:   make(map[string][]common.Hash),
	}
}

func (s *InMemoryStore) SetRole(_ context.Context, addr common.Address, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[addr] = role
	return nil
}

func (s *InMemoryStore) Role(_ context.Context, addr common.Address) (models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[addr]
	if !ok {
		return models.RoleNone, nil
	}
	return role, nil
}

func (s *InMemoryStore) CreateDocument(_ context.Context, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.documents[doc.ID] = doc
	s.docsByRecipient[doc.Recipient] = append(s.docsByRecipient[doc.Recipient], doc.ID)
	s.docsByIssuer[doc.Issuer] = append(s.docsByIssuer[doc.Issuer], doc.ID)
	return nil
}

func (s *InMemoryStore) Document(_ context.Context, id string) (models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return models.Document{}, sentinel.ErrNotFound
	}
	return doc, nil
}

func (s *InMemoryStore) UpdateDocument(_ context.Context, doc models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.documents[doc.ID] = doc
	return nil
}

func (s *InMemoryStore) DocumentIDsByRecipient(_ context.Context, recipient common.Address) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.docsByRecipient[recipient]...), nil
}

func (s *InMemoryStore) DocumentIDsByIssuer(_ context.Context, issuer common.Address) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.docsByIssuer[issuer]...), nil
}

func (s *InMemoryStore) DocumentCount(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.documents)), nil
}

func (s *InMemoryStore) CreateRequest(_ context.Context, req models.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = req
	s.requestsByDoc[req.DocumentID] = append(s.requestsByDoc[req.DocumentID], req.ID)
	return nil
}

func (s *InMemoryStore) Request(_ context.Context, id common.Hash) (models.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return models.VerificationRequest{}, sentinel.ErrNotFound
	}
	return req, nil
}

func (s *InMemoryStore) UpdateRequest(_ context.Context, req models.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[req.ID] = req
	return nil
}

func (s *InMemoryStore) RequestIDsByDocument(_ context.Context, documentID string) ([]common.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]common.Hash{}, s.requestsByDoc[documentID]...), nil
}
