package timeline

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ricirt/feedhub/internal/domain"
	"github.com/ricirt/feedhub/internal/repository"
)

// AuthorCache resolves user ids to public summaries, caching hits for a
// short TTL. Misses are not cached, so a user created after a lookup is seen
// on the next one.
type AuthorCache struct {
	users repository.UserRepository
	cache *expirable.LRU[string, domain.UserSummary]
}

func NewAuthorCache(users repository.UserRepository, size int, ttl time.Duration) *AuthorCache {
	return &AuthorCache{
		users: users,
		cache: expirable.NewLRU[string, domain.UserSummary](size, nil, ttl),
	}
}

// Resolve returns the summaries of the ids that exist. Ids that do not
// resolve are simply absent from the result.
func (c *AuthorCache) Resolve(ctx context.Context, ids []string) (map[string]domain.UserSummary, error) {
	result := make(map[string]domain.UserSummary, len(ids))
	var missing []string
	seen := make(map[string]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if s, ok := c.cache.Get(id); ok {
			result[id] = s
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := c.users.GetSummaries(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, s := range fetched {
		c.cache.Add(id, s)
		result[id] = s
	}
	return result, nil
}
