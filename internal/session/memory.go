package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// InMemoryStore is the default session store. All three tables live in maps
// guarded by a single mutex.
type InMemoryStore struct {
	mu           sync.RWMutex
	contexts     map[string]*models.ConversationContext
	profiles     map[string]*models.UserProfile
	attributions map[string]*models.AdAttribution
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		contexts:     make(map[string]*models.ConversationContext),
		profiles:     make(map[string]*models.UserProfile),
		attributions: make(map[string]*models.AdAttribution),
	}
}

func (s *InMemoryStore) GetContext(userID string) (*models.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contexts[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) SaveContext(userID string, c *models.ConversationContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.contexts[userID] = &cp
	slog.Debug("InMemoryStore SaveContext", "user", userID, "state", c.State().String())
	return nil
}

func (s *InMemoryStore) DeleteContext(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, userID)
	slog.Debug("InMemoryStore DeleteContext", "user", userID)
	return nil
}

func (s *InMemoryStore) GetProfile(userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) SaveProfile(userID string, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[userID] = &cp
	return nil
}

func (s *InMemoryStore) DeleteProfile(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

func (s *InMemoryStore) GetAdAttribution(userID string) (*models.AdAttribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attributions[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) SaveAdAttribution(userID string, a *models.AdAttribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.attributions[userID] = &cp
	slog.Debug("InMemoryStore SaveAdAttribution", "user", userID, "platform", a.Platform)
	return nil
}

func (s *InMemoryStore) DeleteAdAttribution(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attributions, userID)
	return nil
}

func (s *InMemoryStore) IdleUsers(olderThan time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id := range s.contexts {
		p, ok := s.profiles[id]
		if !ok || p.LastActivityAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
