package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sealbox/sealbox/internal/database"
	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
)

// cacheEntry is one cached row with its expiry.
type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// CachedSecretRepository is a read-through, write-invalidate decorator over a
// SecretRepository.
//
// The cache holds ciphertext rows, never plaintext, and is never
// authoritative: a miss or expiry always falls through to the inner
// repository, and every mutation to a path drops that path's entries before
// delegating. Concurrent misses for the same row collapse into one inner
// fetch via singleflight.
//
// Transactional reads bypass the cache entirely so a write transaction always
// observes its own uncommitted state through the inner repository.
type CachedSecretRepository struct {
	inner SecretRepository
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewCachedSecretRepository wraps a repository with a TTL cache.
func NewCachedSecretRepository(inner SecretRepository, ttl time.Duration) *CachedSecretRepository {
	return &CachedSecretRepository{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func secretKey(path string) string {
	return "secret:" + path
}

func versionKey(path string, version uint) string {
	return fmt.Sprintf("version:%s:%d", path, version)
}

func (c *CachedSecretRepository) get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *CachedSecretRepository) put(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// invalidatePath drops every cached entry belonging to a path.
func (c *CachedSecretRepository) invalidatePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, secretKey(path))
	prefix := "version:" + path + ":"
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

// GetSecret serves path metadata through the cache.
func (c *CachedSecretRepository) GetSecret(ctx context.Context, path string) (*secretsDomain.Secret, error) {
	if database.InTx(ctx) {
		return c.inner.GetSecret(ctx, path)
	}

	key := secretKey(path)
	if value, ok := c.get(key); ok {
		clone := *(value.(*secretsDomain.Secret))
		return &clone, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		secret, err := c.inner.GetSecret(ctx, path)
		if err != nil {
			return nil, err
		}
		c.put(key, secret)
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	clone := *(value.(*secretsDomain.Secret))
	return &clone, nil
}

// GetVersion serves version rows through the cache.
func (c *CachedSecretRepository) GetVersion(
	ctx context.Context,
	path string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	if database.InTx(ctx) {
		return c.inner.GetVersion(ctx, path, version)
	}

	key := versionKey(path, version)
	if value, ok := c.get(key); ok {
		clone := *(value.(*secretsDomain.SecretVersion))
		return &clone, nil
	}

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		sv, err := c.inner.GetVersion(ctx, path, version)
		if err != nil {
			return nil, err
		}
		c.put(key, sv)
		return sv, nil
	})
	if err != nil {
		return nil, err
	}
	clone := *(value.(*secretsDomain.SecretVersion))
	return &clone, nil
}

// Mutators invalidate the path on both sides of the delegated write: before,
// so readers stop serving the row being displaced, and after, so a read that
// raced the write and re-cached the old row does not survive it.

// CreateSecret invalidates the path around the delegated write.
func (c *CachedSecretRepository) CreateSecret(ctx context.Context, secret *secretsDomain.Secret) error {
	c.invalidatePath(secret.Path)
	err := c.inner.CreateSecret(ctx, secret)
	c.invalidatePath(secret.Path)
	return err
}

// UpdateSecret invalidates the path around the delegated write.
func (c *CachedSecretRepository) UpdateSecret(ctx context.Context, secret *secretsDomain.Secret) error {
	c.invalidatePath(secret.Path)
	err := c.inner.UpdateSecret(ctx, secret)
	c.invalidatePath(secret.Path)
	return err
}

// CreateVersion invalidates the path around the delegated write.
func (c *CachedSecretRepository) CreateVersion(ctx context.Context, version *secretsDomain.SecretVersion) error {
	c.invalidatePath(version.Path)
	err := c.inner.CreateVersion(ctx, version)
	c.invalidatePath(version.Path)
	return err
}

// SetVersionState invalidates the path around the delegated write.
func (c *CachedSecretRepository) SetVersionState(
	ctx context.Context,
	path string,
	version uint,
	state secretsDomain.VersionState,
	erase bool,
) error {
	c.invalidatePath(path)
	err := c.inner.SetVersionState(ctx, path, version, state, erase)
	c.invalidatePath(path)
	return err
}

// ListVersions delegates without caching; history reads are rare and must be fresh.
func (c *CachedSecretRepository) ListVersions(
	ctx context.Context,
	path string,
) ([]*secretsDomain.SecretVersion, error) {
	return c.inner.ListVersions(ctx, path)
}

// ListPaths delegates without caching.
func (c *CachedSecretRepository) ListPaths(ctx context.Context, prefix string) ([]string, error) {
	return c.inner.ListPaths(ctx, prefix)
}
