package activitypub

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/socialdistance/socialdistance/domain"
)

const testBase = "http://local.test/"

// memStore is an in-memory stand-in for the db package.
type memStore struct {
	authors    map[uuid.UUID]*domain.Author
	accounts   map[uuid.UUID]*domain.Account
	deliveries map[uuid.UUID]*domain.DeliveryItem
	inbox      []domain.InboxItem
	deleteErr  error
}

func newMemStore() *memStore {
	return &memStore{
		authors:    map[uuid.UUID]*domain.Author{},
		accounts:   map[uuid.UUID]*domain.Account{},
		deliveries: map[uuid.UUID]*domain.DeliveryItem{},
	}
}

func (s *memStore) addLocal(name string) *domain.Author {
	acc := &domain.Account{Id: uuid.New(), Username: name}
	a := &domain.Author{Id: uuid.New(), AccountId: acc.Id, DisplayName: name}
	a.BindToHost(testBase)
	s.accounts[acc.Id] = acc
	s.authors[a.Id] = a
	return a
}

func (s *memStore) addMirror(url string) *domain.Author {
	acc := &domain.Account{Id: uuid.New(), Username: "mirror_" + uuid.NewString()[:8]}
	host, _ := domain.HostOf(url)
	a := &domain.Author{Id: uuid.New(), AccountId: acc.Id, DisplayName: "mirror", URL: url, Host: host}
	s.accounts[acc.Id] = acc
	s.authors[a.Id] = a
	return a
}

func (s *memStore) ReadAuthorById(_ context.Context, id uuid.UUID) (*domain.Author, error) {
	if a, ok := s.authors[id]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) ReadAuthorByURL(_ context.Context, url string) (*domain.Author, error) {
	for _, a := range s.authors {
		if a.URL == domain.NormalizeURL(url) {
			return a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) ReadAccountById(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	if acc, ok := s.accounts[id]; ok {
		return acc, nil
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) EnqueueDelivery(_ context.Context, item *domain.DeliveryItem) error {
	cp := *item
	s.deliveries[item.Id] = &cp
	return nil
}

func (s *memStore) CreateInboxItem(_ context.Context, item *domain.InboxItem) error {
	s.inbox = append(s.inbox, *item)
	return nil
}

func (s *memStore) ReadPendingDeliveries(_ context.Context, now time.Time, limit int) ([]domain.DeliveryItem, error) {
	var items []domain.DeliveryItem
	for _, item := range s.deliveries {
		if !item.NextRetryAt.After(now) && len(items) < limit {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (s *memStore) UpdateDeliveryAttempt(_ context.Context, id uuid.UUID, attempts int, next time.Time) error {
	item, ok := s.deliveries[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.Attempts = attempts
	item.NextRetryAt = next
	return nil
}

func (s *memStore) DeleteDelivery(_ context.Context, id uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.deliveries, id)
	return nil
}
