package reconcile

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/hitoshi/cleanupusers/internal/model"
)

// fakeStore は Store のインメモリ実装。
// PostgresAccountRepo と同じ絞り込みと並び順を再現する。
type fakeStore struct {
	accounts map[int64]model.Account
	markers  map[int64]model.SuspensionMarker
	archives map[int64]model.ArchiveRecord

	listErr    error
	markerErr  error
	archiveErr error
	takenErr   error

	markerLookups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[int64]model.Account),
		markers:  make(map[int64]model.SuspensionMarker),
		archives: make(map[int64]model.ArchiveRecord),
	}
}

func (s *fakeStore) nextID() int64 {
	return int64(len(s.accounts) + 1)
}

// addAccount はアカウントを追加してIDを返す。
func (s *fakeStore) addAccount(a model.Account) int64 {
	if a.ID == 0 {
		a.ID = s.nextID()
	}
	if a.AuthMethod == "" {
		a.AuthMethod = "shibboleth"
	}
	s.accounts[a.ID] = a
	return a.ID
}

func (s *fakeStore) addMarker(id int64, at time.Time) {
	s.markers[id] = model.SuspensionMarker{ID: id, Timestamp: at}
}

func (s *fakeStore) addArchive(id int64, username string, lastAccess time.Time) {
	s.archives[id] = model.ArchiveRecord{
		ID:         id,
		AuthMethod: "shibboleth",
		Username:   username,
		Suspended:  true,
		LastAccess: lastAccess,
	}
}

// addToolSuspended はツールが停止した状態（匿名化済みライブ行 + マーカー + アーカイブ）を作る。
func (s *fakeStore) addToolSuspended(original string, markedAt time.Time) int64 {
	id := s.nextID()
	s.addAccount(model.Account{ID: id, Username: "anonym" + strconv.FormatInt(id, 10), Suspended: true})
	s.addMarker(id, markedAt)
	s.addArchive(id, original, markedAt)
	return id
}

func (s *fakeStore) sorted(filter func(model.Account) bool) []model.Account {
	out := make([]model.Account, 0)
	for _, a := range s.accounts {
		if filter(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ListByStatus(ctx context.Context, authMethod string, suspended bool) ([]model.Account, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.sorted(func(a model.Account) bool {
		return a.AuthMethod == authMethod && a.Suspended == suspended && !a.Deleted
	}), nil
}

func (s *fakeStore) ListNeverLoggedIn(ctx context.Context, authMethod string) ([]model.Account, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.sorted(func(a model.Account) bool {
		_, marked := s.markers[a.ID]
		return a.AuthMethod == authMethod && a.LastAccess.IsZero() && !a.Deleted && !marked
	}), nil
}

func (s *fakeStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	if s.takenErr != nil {
		return false, s.takenErr
	}
	for _, a := range s.accounts {
		if a.Username == username && !a.Deleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) FindMarker(ctx context.Context, id int64) (*model.SuspensionMarker, error) {
	s.markerLookups++
	if s.markerErr != nil {
		return nil, s.markerErr
	}
	m, ok := s.markers[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *fakeStore) FindArchive(ctx context.Context, id int64) (*model.ArchiveRecord, error) {
	if s.archiveErr != nil {
		return nil, s.archiveErr
	}
	r, ok := s.archives[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

var _ Store = (*fakeStore)(nil)
