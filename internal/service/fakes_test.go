package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/repository"
	"github.com/tradejournal/internal/storage"
)

type fakeUserStore struct {
	mu     sync.Mutex
	users  map[uint]*models.User
	nextID uint
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uint]*models.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByUsernameOrEmail(_ context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == login || u.Email == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type fakeTradeStore struct {
	mu         sync.Mutex
	trades     map[uint]*models.Trade
	nextID     uint
	batchCalls int
	batchErr   error
	lastBatch  []models.Trade
	lastFilter repository.TradeFilter
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{trades: make(map[uint]*models.Trade)}
}

func (f *fakeTradeStore) Create(_ context.Context, trade *models.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	trade.ID = f.nextID
	cp := *trade
	f.trades[trade.ID] = &cp
	return nil
}

func (f *fakeTradeStore) CreateBatch(ctx context.Context, trades []models.Trade) error {
	f.mu.Lock()
	f.batchCalls++
	f.lastBatch = trades
	err := f.batchErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	for i := range trades {
		if err := f.Create(ctx, &trades[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTradeStore) GetByIDAndUserID(_ context.Context, id, userID uint) (*models.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrTradeNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTradeStore) GetByUserIDPaginated(ctx context.Context, userID uint, filter repository.TradeFilter, page, pageSize int) ([]models.Trade, int64, error) {
	all, _ := f.GetByUserID(ctx, userID, filter)
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (f *fakeTradeStore) GetByUserID(_ context.Context, userID uint, filter repository.TradeFilter) ([]models.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []models.Trade
	for _, t := range f.trades {
		if t.UserID != userID {
			continue
		}
		if filter.Symbol != "" && t.Symbol != filter.Symbol {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTradeStore) Update(_ context.Context, trade *models.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *trade
	f.trades[trade.ID] = &cp
	return nil
}

func (f *fakeTradeStore) Delete(_ context.Context, id, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trades[id]
	if !ok || t.UserID != userID {
		return repository.ErrTradeNotFound
	}
	delete(f.trades, id)
	return nil
}

type fakeJournalStore struct {
	mu      sync.Mutex
	entries map[uint]*models.JournalEntry
	nextID  uint
}

func newFakeJournalStore() *fakeJournalStore {
	return &fakeJournalStore{entries: make(map[uint]*models.JournalEntry)}
}

func (f *fakeJournalStore) Create(_ context.Context, entry *models.JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	entry.ID = f.nextID
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *fakeJournalStore) GetByIDAndUserID(_ context.Context, id, userID uint) (*models.JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || e.UserID != userID {
		return nil, repository.ErrJournalEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeJournalStore) GetByUserIDPaginated(_ context.Context, userID uint, tradeID *uint, page, pageSize int) ([]models.JournalEntry, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.JournalEntry
	for _, e := range f.entries {
		if e.UserID != userID {
			continue
		}
		if tradeID != nil && (e.TradeID == nil || *e.TradeID != *tradeID) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeJournalStore) Update(_ context.Context, entry *models.JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *fakeJournalStore) Delete(_ context.Context, id, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || e.UserID != userID {
		return repository.ErrJournalEntryNotFound
	}
	delete(f.entries, id)
	return nil
}

type fakeMediaStore struct {
	mu        sync.Mutex
	media     map[uint]*models.Media
	nextID    uint
	createErr error
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{media: make(map[uint]*models.Media)}
}

func (f *fakeMediaStore) Create(_ context.Context, media *models.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	media.ID = f.nextID
	cp := *media
	f.media[media.ID] = &cp
	return nil
}

func (f *fakeMediaStore) GetByIDAndUserID(_ context.Context, id, userID uint) (*models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.media[id]
	if !ok || m.UserID != userID {
		return nil, repository.ErrMediaNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMediaStore) GetByTradeID(_ context.Context, tradeID, userID uint) ([]models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Media
	for _, m := range f.media {
		if m.UserID == userID && m.TradeID != nil && *m.TradeID == tradeID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMediaStore) GetByJournalEntryID(_ context.Context, entryID, userID uint) ([]models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Media
	for _, m := range f.media {
		if m.UserID == userID && m.JournalEntryID != nil && *m.JournalEntryID == entryID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMediaStore) Delete(_ context.Context, id, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.media[id]
	if !ok || m.UserID != userID {
		return repository.ErrMediaNotFound
	}
	delete(f.media, id)
	return nil
}

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (m *memObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjectStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *memObjectStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var errStoreDown = errors.New("store down")

func csvReader(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}
