// Package redis stores wizard drafts in Redis, one hash per owner.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	rd "github.com/go-redis/redis/v9"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
)

const draftsKey = "drafts"

type Config struct {
	Addrs     []string
	Namespace string
	// ConnectRetries bounds the startup ping; zero means a single attempt.
	ConnectRetries uint64
	RetryInterval  time.Duration
}

// DraftStore keeps each owner's drafts in the hash <namespace>:drafts:<owner>,
// keyed by draft id. A commit is a single HSET of the whole record.
type DraftStore struct {
	client    rd.UniversalClient
	namespace string
}

var _ ports.DraftStore = (*DraftStore)(nil)

func NewDraftStore(ctx context.Context, conf Config) (*DraftStore, error) {
	if len(conf.Addrs) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}
	ns := conf.Namespace
	if ns == "" {
		ns = "inforequest"
	}
	client := rd.NewUniversalClient(&rd.UniversalOptions{Addrs: conf.Addrs})

	interval := conf.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), conf.ConnectRetries), ctx)
	err := backoff.Retry(func() error {
		return client.Ping(ctx).Err()
	}, b)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &DraftStore{client: client, namespace: ns}, nil
}

func (s *DraftStore) Close() error {
	return s.client.Close()
}

func (s *DraftStore) key(args ...string) string {
	return fmt.Sprintf("%s:%s", s.namespace, strings.Join(args, ":"))
}

func (s *DraftStore) LoadDraft(ctx context.Context, id, owner string) (*domain.Draft, error) {
	raw, err := s.client.HGet(ctx, s.key(draftsKey, owner), id).Result()
	if errors.Is(err, rd.Nil) {
		return nil, fmt.Errorf("draft %q: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading draft %q: %w", id, err)
	}
	return domain.UnmarshalDraft([]byte(raw))
}

func (s *DraftStore) SaveDraft(ctx context.Context, d *domain.Draft) error {
	record, err := domain.MarshalDraft(d)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key(draftsKey, d.Owner), d.ID, string(record)).Err(); err != nil {
		return fmt.Errorf("saving draft %q: %w", d.ID, err)
	}
	return nil
}

func (s *DraftStore) DeleteDraft(ctx context.Context, id, owner string) error {
	n, err := s.client.HDel(ctx, s.key(draftsKey, owner), id).Result()
	if err != nil {
		return fmt.Errorf("deleting draft %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("draft %q: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (s *DraftStore) ListDrafts(ctx context.Context, owner string) ([]*domain.Draft, error) {
	all, err := s.client.HGetAll(ctx, s.key(draftsKey, owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	drafts := make([]*domain.Draft, 0, len(all))
	for _, raw := range all {
		d, err := domain.UnmarshalDraft([]byte(raw))
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].ID < drafts[j].ID })
	return drafts, nil
}

// Clear removes every draft of the owner.
func (s *DraftStore) Clear(ctx context.Context, owner string) error {
	return s.client.Del(ctx, s.key(draftsKey, owner)).Err()
}
