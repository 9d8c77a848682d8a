package dispatch

import (
	"context"
	"time"

	"github.com/edu-notify-api/internal/domain"
	"github.com/patrickmn/go-cache"
)

// UserDirectory lists the enabled users a role or platform-wide fan-out reaches.
type UserDirectory interface {
	ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error)
	ListAllIDs(ctx context.Context) ([]string, error)
}

const allUsersKey = "*"

// CachedDirectory memoizes role and all-user listings for a short TTL, since the
// underlying lookup is a table scan.
type CachedDirectory struct {
	next  UserDirectory
	cache *cache.Cache
}

func NewCachedDirectory(next UserDirectory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (d *CachedDirectory) ListIDsByRole(ctx context.Context, role domain.Role) ([]string, error) {
	return d.load(string(role), func() ([]string, error) { return d.next.ListIDsByRole(ctx, role) })
}

func (d *CachedDirectory) ListAllIDs(ctx context.Context) ([]string, error) {
	return d.load(allUsersKey, func() ([]string, error) { return d.next.ListAllIDs(ctx) })
}

// Invalidate drops every cached listing, e.g. after a role change.
func (d *CachedDirectory) Invalidate() { d.cache.Flush() }

func (d *CachedDirectory) load(key string, fetch func() ([]string, error)) ([]string, error) {
	if ids, ok := d.cache.Get(key); ok {
		return ids.([]string), nil
	}
	ids, err := fetch()
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(key, ids)
	return ids, nil
}

// resolve expands rs into concrete user ids.
func resolve(ctx context.Context, dir UserDirectory, rs domain.RecipientSpec) ([]string, error) {
	switch {
	case len(rs.UserIDs) > 0:
		return rs.UserIDs, nil
	case rs.Role != "":
		return dir.ListIDsByRole(ctx, rs.Role)
	case rs.All:
		return dir.ListAllIDs(ctx)
	}
	return nil, nil
}
