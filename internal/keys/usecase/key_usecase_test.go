package usecase

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sealbox/sealbox/internal/errors"
	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
	keysService "github.com/sealbox/sealbox/internal/keys/service"
	"github.com/sealbox/sealbox/internal/metrics"
	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
)

// memKeyRepo is an in-memory KeyRepository for tests.
type memKeyRepo struct {
	mu       sync.Mutex
	keys     map[string]*keysDomain.EncryptionKey
	versions map[string]map[uint]*keysDomain.KeyVersion
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{
		keys:     make(map[string]*keysDomain.EncryptionKey),
		versions: make(map[string]map[uint]*keysDomain.KeyVersion),
	}
}

func (m *memKeyRepo) CreateKey(_ context.Context, key *keysDomain.EncryptionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key.Name]; ok {
		return apperrors.ErrConflict
	}
	clone := *key
	m.keys[key.Name] = &clone
	return nil
}

func (m *memKeyRepo) GetKey(_ context.Context, name string) (*keysDomain.EncryptionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[name]
	if !ok {
		return nil, keysDomain.ErrKeyNotFound
	}
	clone := *key
	return &clone, nil
}

func (m *memKeyRepo) UpdateKey(_ context.Context, key *keysDomain.EncryptionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.keys[key.Name]
	if !ok || current.RowVersion != key.RowVersion {
		return apperrors.ErrConflict
	}
	clone := *key
	clone.RowVersion++
	m.keys[key.Name] = &clone
	key.RowVersion++
	return nil
}

func (m *memKeyRepo) CreateVersion(_ context.Context, version *keysDomain.KeyVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[version.KeyName] == nil {
		m.versions[version.KeyName] = make(map[uint]*keysDomain.KeyVersion)
	}
	clone := *version
	m.versions[version.KeyName][version.Version] = &clone
	return nil
}

func (m *memKeyRepo) GetVersion(_ context.Context, name string, version uint) (*keysDomain.KeyVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kv, ok := m.versions[name][version]
	if !ok {
		return nil, keysDomain.ErrKeyVersionNotFound
	}
	clone := *kv
	return &clone, nil
}

func (m *memKeyRepo) ListKeys(_ context.Context) ([]*keysDomain.EncryptionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.keys))
	for name := range m.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	keys := make([]*keysDomain.EncryptionKey, 0, len(names))
	for _, name := range names {
		clone := *m.keys[name]
		keys = append(keys, &clone)
	}
	return keys, nil
}

// noTxManager runs the function without a transaction; the in-memory repo has
// no transactional behavior to exercise.
type noTxManager struct{}

func (noTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeMasterKeySource returns a fixed master key, or nil when sealed.
type fakeMasterKeySource struct {
	mu     sync.Mutex
	key    []byte
	sealed bool
}

func (f *fakeMasterKeySource) MasterKey() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sealed {
		return nil
	}
	return append([]byte(nil), f.key...)
}

func (f *fakeMasterKeySource) seal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sealed = true
}

func newTestKeyUseCase(t *testing.T) (KeyUseCase, *memKeyRepo, *fakeMasterKeySource) {
	t.Helper()

	masterKey := make([]byte, keysDomain.KeySize)
	_, err := rand.Read(masterKey)
	require.NoError(t, err)

	repo := newMemKeyRepo()
	source := &fakeMasterKeySource{key: masterKey}
	wrapper := keysService.NewKeyWrapper(keysService.NewAEADManager())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	uc := NewKeyUseCase(noTxManager{}, repo, wrapper, source, logger, metrics.NewNoOpBusinessMetrics())
	return uc, repo, source
}

func TestGetActiveDek(t *testing.T) {
	ctx := context.Background()

	t.Run("LazyCreatesOnFirstUse", func(t *testing.T) {
		uc, repo, _ := newTestKeyUseCase(t)

		dek, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)
		assert.Equal(t, "app-secrets", dek.KeyName)
		assert.Equal(t, uint(1), dek.Version)
		assert.Equal(t, keysDomain.DefaultAlgorithm, dek.Algorithm)
		assert.Len(t, dek.Key, keysDomain.KeySize)

		key, err := repo.GetKey(ctx, "app-secrets")
		require.NoError(t, err)
		assert.Equal(t, uint(1), key.CurrentVersion)
		assert.Equal(t, uint(1), key.MinDecryptionVersion)
	})

	t.Run("StableAcrossCalls", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		first, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)
		second, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)
		assert.Equal(t, first.Key, second.Key)
	})

	t.Run("FailsWhileSealed", func(t *testing.T) {
		uc, _, source := newTestKeyUseCase(t)
		source.seal()

		_, err := uc.GetActiveDek(ctx, "app-secrets")
		assert.ErrorIs(t, err, sealDomain.ErrSealed)
	})

	t.Run("RejectsInvalidName", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.GetActiveDek(ctx, "no spaces allowed")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("ConcurrentFirstUseCreatesOnce", func(t *testing.T) {
		uc, repo, _ := newTestKeyUseCase(t)

		var wg sync.WaitGroup
		deks := make([]*keysDomain.Dek, 10)
		for i := range deks {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				dek, err := uc.GetActiveDek(ctx, "shared")
				require.NoError(t, err)
				deks[i] = dek
			}(i)
		}
		wg.Wait()

		for _, dek := range deks[1:] {
			assert.Equal(t, deks[0].Key, dek.Key)
		}
		assert.Len(t, repo.versions["shared"], 1)
	})
}

func TestCreateKey(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		key, err := uc.CreateKey(ctx, "transit", keysDomain.ChaCha20)
		require.NoError(t, err)
		assert.Equal(t, keysDomain.ChaCha20, key.Algorithm)
		assert.Equal(t, uint(1), key.CurrentVersion)

		dek, err := uc.GetActiveDek(ctx, "transit")
		require.NoError(t, err)
		assert.Equal(t, keysDomain.ChaCha20, dek.Algorithm)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.CreateKey(ctx, "transit", keysDomain.AESGCM)
		require.NoError(t, err)

		_, err = uc.CreateKey(ctx, "transit", keysDomain.AESGCM)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("UnsupportedAlgorithm", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.CreateKey(ctx, "transit", keysDomain.Algorithm("des"))
		assert.ErrorIs(t, err, keysDomain.ErrUnsupportedAlgorithm)
	})
}

func TestRotate(t *testing.T) {
	ctx := context.Background()

	t.Run("AdvancesCurrentVersion", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		v1, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)

		newVersion, err := uc.Rotate(ctx, "app-secrets")
		require.NoError(t, err)
		assert.Equal(t, uint(2), newVersion)

		active, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)
		assert.Equal(t, uint(2), active.Version)
		assert.NotEqual(t, v1.Key, active.Key)

		// The old version still unwraps to the original material.
		old, err := uc.GetDekVersion(ctx, "app-secrets", 1)
		require.NoError(t, err)
		assert.Equal(t, v1.Key, old.Key)
	})

	t.Run("UnknownKey", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.Rotate(ctx, "missing")
		assert.ErrorIs(t, err, keysDomain.ErrKeyNotFound)
	})

	t.Run("FailsWhileSealed", func(t *testing.T) {
		uc, _, source := newTestKeyUseCase(t)
		_, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)

		source.seal()
		_, err = uc.Rotate(ctx, "app-secrets")
		assert.ErrorIs(t, err, sealDomain.ErrSealed)
	})
}

func TestSetMinDecryptionVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("RetiresOlderVersions", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)
		_, err = uc.Rotate(ctx, "app-secrets")
		require.NoError(t, err)
		_, err = uc.Rotate(ctx, "app-secrets")
		require.NoError(t, err)

		require.NoError(t, uc.SetMinDecryptionVersion(ctx, "app-secrets", 2))

		_, err = uc.GetDekVersion(ctx, "app-secrets", 1)
		assert.ErrorIs(t, err, keysDomain.ErrKeyVersionRetired)

		_, err = uc.GetDekVersion(ctx, "app-secrets", 2)
		assert.NoError(t, err)
	})

	t.Run("FloorNeverMovesDown", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)
		_, err = uc.Rotate(ctx, "app-secrets")
		require.NoError(t, err)

		require.NoError(t, uc.SetMinDecryptionVersion(ctx, "app-secrets", 2))
		// Lowering is a silent no-op, not an error.
		require.NoError(t, uc.SetMinDecryptionVersion(ctx, "app-secrets", 1))

		key, err := uc.GetKey(ctx, "app-secrets")
		require.NoError(t, err)
		assert.Equal(t, uint(2), key.MinDecryptionVersion)
	})

	t.Run("CannotExceedCurrentVersion", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)

		err = uc.SetMinDecryptionVersion(ctx, "app-secrets", 5)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestGetDekVersion(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownVersion", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.GetActiveDek(ctx, "app-secrets")
		require.NoError(t, err)

		_, err = uc.GetDekVersion(ctx, "app-secrets", 9)
		assert.ErrorIs(t, err, keysDomain.ErrKeyVersionNotFound)
	})

	t.Run("ZeroVersionRejected", func(t *testing.T) {
		uc, _, _ := newTestKeyUseCase(t)

		_, err := uc.GetDekVersion(ctx, "app-secrets", 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestWrappedDekIsBoundToIdentity(t *testing.T) {
	ctx := context.Background()

	uc, repo, _ := newTestKeyUseCase(t)

	_, err := uc.GetActiveDek(ctx, "app-secrets")
	require.NoError(t, err)
	_, err = uc.Rotate(ctx, "app-secrets")
	require.NoError(t, err)

	// Swap the wrapped blobs between versions; unwrapping must fail because
	// the AAD pins each blob to its version.
	repo.mu.Lock()
	v1 := repo.versions["app-secrets"][1]
	v2 := repo.versions["app-secrets"][2]
	v1.WrappedKey, v2.WrappedKey = v2.WrappedKey, v1.WrappedKey
	v1.Nonce, v2.Nonce = v2.Nonce, v1.Nonce
	repo.mu.Unlock()

	_, err = uc.GetDekVersion(ctx, "app-secrets", 1)
	assert.ErrorIs(t, err, keysDomain.ErrDecryptionFailed)
}
