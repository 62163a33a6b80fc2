package workdays

import (
	"fmt"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/patrickmn/go-cache"
)

// Cached memoizes lookups of an underlying calendar.
type Cached struct {
	cal   domain.Calendar
	cache *cache.Cache
}

var _ domain.Calendar = (*Cached)(nil)

func NewCached(cal domain.Calendar, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Cached{cal: cal, cache: cache.New(ttl, 10*time.Minute)}
}

func (c *Cached) Between(from, to time.Time) int {
	key := fmt.Sprintf("between:%s:%s", domain.FormatDate(from), domain.FormatDate(to))
	if v, ok := c.cache.Get(key); ok {
		return v.(int)
	}
	n := c.cal.Between(from, to)
	c.cache.Set(key, n, cache.DefaultExpiration)
	return n
}

func (c *Cached) Advance(from time.Time, days int) time.Time {
	key := fmt.Sprintf("advance:%s:%d", domain.FormatDate(from), days)
	if v, ok := c.cache.Get(key); ok {
		return v.(time.Time)
	}
	t := c.cal.Advance(from, days)
	c.cache.Set(key, t, cache.DefaultExpiration)
	return t
}

func (c *Cached) Len() int { return c.cache.ItemCount() }
