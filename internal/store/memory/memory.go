// Package memory holds map-backed repositories with the same contracts as the
// postgres ones. The users service can run on them without a database.
package memory

import (
	"sort"
	"sync"

	"github.com/GurgoSoft/MIND-sub001/types"
)

// Store groups the repositories of the users domain so lookups can count
// references held by users.
type Store struct {
	Persons *PersonRepository
	Users   *UserRepository

	mu      sync.Mutex
	lookups map[types.LookupKind]*LookupRepository
}

func New() *Store {
	s := &Store{
		Persons: NewPersonRepository(),
		Users:   NewUserRepository(),
		lookups: make(map[types.LookupKind]*LookupRepository),
	}
	return s
}

// Lookup returns the repository for kind, creating it on first use.
func (s *Store) Lookup(kind types.LookupKind) *LookupRepository {
	s.mu.Lock()
	defer s.mu.Unlock()

	if repo, ok := s.lookups[kind]; ok {
		return repo
	}
	repo := NewLookupRepository(kind)
	switch kind {
	case types.LookupUserTypes:
		repo.refs = func(id string) int {
			return s.Users.count(func(u types.User) bool { return u.UserTypeID == id })
		}
	case types.LookupStatuses:
		repo.refs = func(id string) int {
			return s.Users.count(func(u types.User) bool { return u.StatusID != nil && *u.StatusID == id })
		}
	}
	s.lookups[kind] = repo
	return repo
}

// paginate sorts items with less and returns the requested page.
func paginate[T any](items []T, page types.Page, less func(a, b T) bool) ([]T, int) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	page = page.Normalize()
	total := len(items)
	start := page.Offset()
	if start >= total {
		return []T{}, total
	}
	end := min(start+page.Limit, total)
	return items[start:end], total
}
