package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phillip/levy-collector-go/models"
)

// Memory is a process-local backend, the stand-in for the browser storage
// variant. It is also what the tests run against.
type Memory struct {
	mu           sync.RWMutex
	transactions []models.Transaction
	users        map[string]models.User // by id
	subs         map[chan ChangeEvent]struct{}
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]models.User),
		subs:  make(map[chan ChangeEvent]struct{}),
		now:   time.Now,
	}
}

func (m *Memory) InsertTransaction(_ context.Context, t *models.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now().UTC()
	}

	m.mu.Lock()
	for _, existing := range m.transactions {
		if existing.ID == t.ID {
			m.mu.Unlock()
			return ErrDuplicate
		}
	}
	m.transactions = append(m.transactions, *t)
	m.mu.Unlock()

	m.publish(ChangeEvent{Type: ChangeInsert, Record: *t})
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.transactions {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListTransactions(_ context.Context, f Filter) ([]models.Transaction, error) {
	m.mu.RLock()
	out := make([]models.Transaction, 0, len(m.transactions))
	for _, t := range m.transactions {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	sub := make(chan ChangeEvent, 64)
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	out := make(chan ChangeEvent)
	go func() {
		defer close(out)
		defer func() {
			m.mu.Lock()
			delete(m.subs, sub)
			m.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-sub:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// publish never blocks; a subscriber that falls 64 events behind loses events.
func (m *Memory) publish(ev ChangeEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.subs {
		select {
		case sub <- ev:
		default:
		}
	}
}

func (m *Memory) CreateUser(_ context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) ListUsers(context.Context) ([]models.User, error) {
	m.mu.RLock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *Memory) Close(context.Context) error { return nil }
