// Package credentials holds the process-wide credential snapshot that every
// object store call reads exactly once.
package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/s3master/internal/storage"
)

// Persister saves credentials somewhere durable before they become current.
type Persister interface {
	SaveCredentials(ctx context.Context, creds storage.Credentials) error
}

// Store is a storage.CredentialSource whose value can be swapped at runtime.
// Readers always see a complete snapshot; a swap never affects a call that
// already took one.
type Store struct {
	current   atomic.Pointer[storage.Credentials]
	persister Persister

	// updateMu keeps the persisted value and the current snapshot in step.
	updateMu sync.Mutex

	mu        sync.Mutex
	listeners []func(storage.Credentials)
}

// NewStore seeds a store with initial. persister may be nil.
func NewStore(initial storage.Credentials, persister Persister) *Store {
	s := &Store{persister: persister}
	c := normalize(initial)
	s.current.Store(&c)
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() storage.Credentials {
	return *s.current.Load()
}

// Update persists and then activates creds. An empty secret keeps the
// current one so a form can resubmit without re-entering it.
func (s *Store) Update(ctx context.Context, creds storage.Credentials) error {
	next := normalize(creds)
	if next.AccessKeyID == "" {
		return fmt.Errorf("access key id must not be empty")
	}
	if next.Region == "" {
		next.Region = storage.DefaultRegion
	}

	next, err := s.commit(ctx, next)
	if err != nil {
		return err
	}
	log.Info().Str("access_key_id", Mask(next.AccessKeyID)).Str("region", next.Region).Msg("credentials updated")

	s.mu.Lock()
	listeners := append([]func(storage.Credentials){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(next)
	}
	return nil
}

// commit persists next and makes it current while holding updateMu, so the
// last value saved is always the one callers read.
func (s *Store) commit(ctx context.Context, next storage.Credentials) (storage.Credentials, error) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	if next.SecretAccessKey == "" {
		next.SecretAccessKey = s.Current().SecretAccessKey
	}
	if next.SecretAccessKey == "" {
		return next, fmt.Errorf("secret access key must not be empty")
	}
	if s.persister != nil {
		if err := s.persister.SaveCredentials(ctx, next); err != nil {
			return next, fmt.Errorf("persist credentials: %w", err)
		}
	}
	s.current.Store(&next)
	return next, nil
}

// OnChange registers fn to run after every successful Update.
func (s *Store) OnChange(fn func(storage.Credentials)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Mask keeps the last four characters of a secret-ish value.
func Mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

func normalize(c storage.Credentials) storage.Credentials {
	return storage.Credentials{
		AccessKeyID:     strings.TrimSpace(c.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(c.SecretAccessKey),
		Region:          strings.TrimSpace(c.Region),
	}
}

var _ storage.CredentialSource = (*Store)(nil)
