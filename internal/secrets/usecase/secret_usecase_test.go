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
	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
)

const testKeyName = "secrets-engine"

// fakeKeyUseCase serves DEKs from memory for secret store tests.
type fakeKeyUseCase struct {
	mu         sync.Mutex
	deks       map[uint][]byte
	current    uint
	minVersion uint
	sealed     bool
}

func newFakeKeyUseCase(t *testing.T) *fakeKeyUseCase {
	t.Helper()
	f := &fakeKeyUseCase{deks: make(map[uint][]byte), minVersion: 1}
	f.rotate(t)
	return f
}

func (f *fakeKeyUseCase) rotate(t *testing.T) uint {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	key := make([]byte, keysDomain.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	f.current++
	f.deks[f.current] = key
	return f.current
}

func (f *fakeKeyUseCase) dek(version uint) (*keysDomain.Dek, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sealed {
		return nil, sealDomain.ErrSealed
	}
	if version < f.minVersion {
		return nil, keysDomain.ErrKeyVersionRetired
	}
	key, ok := f.deks[version]
	if !ok {
		return nil, keysDomain.ErrKeyVersionNotFound
	}
	return &keysDomain.Dek{
		KeyName:   testKeyName,
		Version:   version,
		Algorithm: keysDomain.AESGCM,
		Key:       append([]byte(nil), key...),
	}, nil
}

func (f *fakeKeyUseCase) GetActiveDek(_ context.Context, _ string) (*keysDomain.Dek, error) {
	f.mu.Lock()
	current := f.current
	f.mu.Unlock()
	return f.dek(current)
}

func (f *fakeKeyUseCase) GetDekVersion(_ context.Context, _ string, version uint) (*keysDomain.Dek, error) {
	return f.dek(version)
}

func (f *fakeKeyUseCase) CreateKey(context.Context, string, keysDomain.Algorithm) (*keysDomain.EncryptionKey, error) {
	return nil, nil
}

func (f *fakeKeyUseCase) Rotate(context.Context, string) (uint, error) { return 0, nil }

func (f *fakeKeyUseCase) SetMinDecryptionVersion(context.Context, string, uint) error { return nil }

func (f *fakeKeyUseCase) GetKey(context.Context, string) (*keysDomain.EncryptionKey, error) {
	return nil, nil
}

func (f *fakeKeyUseCase) ListKeys(context.Context) ([]*keysDomain.EncryptionKey, error) {
	return nil, nil
}

// memSecretRepo is an in-memory SecretRepository for tests.
type memSecretRepo struct {
	mu       sync.Mutex
	secrets  map[string]*secretsDomain.Secret
	versions map[string]map[uint]*secretsDomain.SecretVersion

	getSecretCalls  int
	getVersionCalls int

	// onUpdateSecret, when set, runs at the start of UpdateSecret, outside
	// the repo lock. Lets tests interleave a read with a write in flight.
	onUpdateSecret func()
}

func newMemSecretRepo() *memSecretRepo {
	return &memSecretRepo{
		secrets:  make(map[string]*secretsDomain.Secret),
		versions: make(map[string]map[uint]*secretsDomain.SecretVersion),
	}
}

func (m *memSecretRepo) CreateSecret(_ context.Context, secret *secretsDomain.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[secret.Path]; ok {
		return apperrors.ErrConflict
	}
	clone := *secret
	m.secrets[secret.Path] = &clone
	return nil
}

func (m *memSecretRepo) GetSecret(_ context.Context, path string) (*secretsDomain.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getSecretCalls++
	secret, ok := m.secrets[path]
	if !ok {
		return nil, secretsDomain.ErrSecretNotFound
	}
	clone := *secret
	return &clone, nil
}

func (m *memSecretRepo) UpdateSecret(_ context.Context, secret *secretsDomain.Secret) error {
	if m.onUpdateSecret != nil {
		m.onUpdateSecret()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.secrets[secret.Path]
	if !ok || current.RowVersion != secret.RowVersion {
		return apperrors.ErrConflict
	}
	clone := *secret
	clone.RowVersion++
	m.secrets[secret.Path] = &clone
	secret.RowVersion++
	return nil
}

func (m *memSecretRepo) CreateVersion(_ context.Context, version *secretsDomain.SecretVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[version.Path] == nil {
		m.versions[version.Path] = make(map[uint]*secretsDomain.SecretVersion)
	}
	if _, ok := m.versions[version.Path][version.Version]; ok {
		return apperrors.ErrConflict
	}
	clone := *version
	m.versions[version.Path][version.Version] = &clone
	return nil
}

func (m *memSecretRepo) GetVersion(_ context.Context, path string, version uint) (*secretsDomain.SecretVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getVersionCalls++
	sv, ok := m.versions[path][version]
	if !ok {
		return nil, secretsDomain.ErrVersionNotFound
	}
	clone := *sv
	return &clone, nil
}

func (m *memSecretRepo) ListVersions(_ context.Context, path string) ([]*secretsDomain.SecretVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	numbers := make([]uint, 0, len(m.versions[path]))
	for number := range m.versions[path] {
		numbers = append(numbers, number)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	versions := make([]*secretsDomain.SecretVersion, 0, len(numbers))
	for _, number := range numbers {
		clone := *m.versions[path][number]
		clone.Ciphertext = nil
		clone.Nonce = nil
		versions = append(versions, &clone)
	}
	return versions, nil
}

func (m *memSecretRepo) SetVersionState(
	_ context.Context,
	path string,
	version uint,
	state secretsDomain.VersionState,
	erase bool,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sv, ok := m.versions[path][version]
	if !ok {
		return secretsDomain.ErrVersionNotFound
	}
	sv.State = state
	if erase {
		sv.Ciphertext = nil
		sv.Nonce = nil
	}
	return nil
}

func (m *memSecretRepo) ListPaths(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for path := range m.secrets {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// noTxManager runs the function without a transaction.
type noTxManager struct{}

func (noTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestSecretUseCase(t *testing.T) (SecretUseCase, *memSecretRepo, *fakeKeyUseCase) {
	t.Helper()
	repo := newMemSecretRepo()
	keys := newFakeKeyUseCase(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := NewSecretUseCase(
		noTxManager{}, repo, keys, keysService.NewAEADManager(), logger, testKeyName, 10,
	)
	return uc, repo, keys
}

func casValue(v uint) *uint { return &v }

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()

	t.Run("Roundtrip", func(t *testing.T) {
		uc, _, _ := newTestSecretUseCase(t)

		sv, err := uc.Write(ctx, "db/prod/password", []byte("hunter2"), secretsDomain.WriteOptions{})
		require.NoError(t, err)
		assert.Equal(t, uint(1), sv.Version)
		assert.Nil(t, sv.Ciphertext)
		assert.Nil(t, sv.Plaintext)

		got, err := uc.Read(ctx, "db/prod/password", 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("hunter2"), got.Plaintext)
		assert.Equal(t, uint(1), got.Version)
		assert.Equal(t, testKeyName, got.KeyName)
	})

	t.Run("VersionsAccumulate", func(t *testing.T) {
		uc, _, _ := newTestSecretUseCase(t)

		_, err := uc.Write(ctx, "app/token", []byte("one"), secretsDomain.WriteOptions{})
		require.NoError(t, err)
		sv, err := uc.Write(ctx, "app/token", []byte("two"), secretsDomain.WriteOptions{})
		require.NoError(t, err)
		assert.Equal(t, uint(2), sv.Version)

		current, err := uc.Read(ctx, "app/token", 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), current.Plaintext)

		old, err := uc.Read(ctx, "app/token", 1)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), old.Plaintext)
	})

	t.Run("MissingPath", func(t *testing.T) {
		uc, _, _ := newTestSecretUseCase(t)

		_, err := uc.Read(ctx, "missing", 0)
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		uc, _, _ := newTestSecretUseCase(t)

		_, err := uc.Write(ctx, "/leading/slash", []byte("x"), secretsDomain.WriteOptions{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("FailsWhileSealed", func(t *testing.T) {
		uc, _, keys := newTestSecretUseCase(t)
		_, err := uc.Write(ctx, "app/token", []byte("x"), secretsDomain.WriteOptions{})
		require.NoError(t, err)

		keys.mu.Lock()
		keys.sealed = true
		keys.mu.Unlock()

		_, err = uc.Write(ctx, "app/token", []byte("y"), secretsDomain.WriteOptions{})
		assert.ErrorIs(t, err, sealDomain.ErrSealed)
		_, err = uc.Read(ctx, "app/token", 0)
		assert.ErrorIs(t, err, sealDomain.ErrSealed)
	})
}

func TestCheckAndSet(t *testing.T) {
	ctx := context.Background()

	t.Run("ZeroMeansMustNotExist", func(t *testing.T) {
		uc, _, _ := newTestSecretUseCase(t)

		_, err := uc.Write(ctx, "app/token", []byte("one"), secretsDomain.WriteOptions{CAS: casValue(0)})
		require.NoError(t, err)

		_, err = uc.Write(ctx, "app/token", []byte("two"), secretsDomain.WriteOptions{CAS: casValue(0)})
		assert.ErrorIs(t, err, secretsDomain.ErrCasMismatch)
	})

	t.Run("MustMatchCurrentVersion", func(t *testing.T) {
		uc, _, _ := newTestSecretUseCase(t)

		_, err := uc.Write(ctx, "app/token", []byte("one"), secretsDomain.WriteOptions{})
		require.NoError(t, err)

		sv, err := uc.Write(ctx, "app/token", []byte("two"), secretsDomain.WriteOptions{CAS: casValue(1)})
		require.NoError(t, err)
		assert.Equal(t, uint(2), sv.Version)

		_, err = uc.Write(ctx, "app/token", []byte("three"), secretsDomain.WriteOptions{CAS: casValue(1)})
		assert.ErrorIs(t, err, secretsDomain.ErrCasMismatch)
	})

	t.Run("CasRequiredPath", func(t *testing.T) {
		uc, _, _ := newTestSecretUseCase(t)

		_, err := uc.Write(ctx, "app/token", []byte("one"), secretsDomain.WriteOptions{
			CAS:         casValue(0),
			CasRequired: true,
		})
		require.NoError(t, err)

		_, err = uc.Write(ctx, "app/token", []byte("two"), secretsDomain.WriteOptions{})
		assert.ErrorIs(t, err, secretsDomain.ErrCasRequired)

		_, err = uc.Write(ctx, "app/token", []byte("two"), secretsDomain.WriteOptions{CAS: casValue(1)})
		assert.NoError(t, err)
	})
}

func TestTombstones(t *testing.T) {
	ctx := context.Background()

	t.Run("DeleteHidesUndeleteRestores", func(t *testing.T) {
		uc, _, _ := newTestSecretUseCase(t)

		_, err := uc.Write(ctx, "app/token", []byte("one"), secretsDomain.WriteOptions{})
		require.NoError(t, err)

		require.NoError(t, uc.Delete(ctx, "app/token", nil))

		_, err = uc.Read(ctx, "app/token", 0)
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
		_, err = uc.Read(ctx, "app/token", 1)
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)

		// Delete again is a no-op.
		require.NoError(t, uc.Delete(ctx, "app/token", []uint{1}))

		require.NoError(t, uc.Undelete(ctx, "app/token", []uint{1}))
		got, err := uc.Read(ctx, "app/token", 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), got.Plaintext)
	})

	t.Run("DestroyIsAbsorbing", func(t *testing.T) {
		uc, repo, _ := newTestSecretUseCase(t)

		_, err := uc.Write(ctx, "app/token", []byte("one"), secretsDomain.WriteOptions{})
		require.NoError(t, err)

		require.NoError(t, uc.Destroy(ctx, "app/token", []uint{1}))

		_, err = uc.Read(ctx, "app/token", 1)
		assert.ErrorIs(t, err, secretsDomain.ErrVersionDestroyed)

		err = uc.Undelete(ctx, "app/token", []uint{1})
		assert.ErrorIs(t, err, secretsDomain.ErrVersionDestroyed)

		err = uc.Delete(ctx, "app/token", []uint{1})
		assert.ErrorIs(t, err, secretsDomain.ErrVersionDestroyed)

		// Idempotent.
		require.NoError(t, uc.Destroy(ctx, "app/token", []uint{1}))

		// Ciphertext is gone from the row itself.
		repo.mu.Lock()
		assert.Nil(t, repo.versions["app/token"][1].Ciphertext)
		repo.mu.Unlock()
	})
}

func TestPruning(t *testing.T) {
	ctx := context.Background()

	uc, repo, _ := newTestSecretUseCase(t)

	for _, value := range []string{"v1", "v2", "v3", "v4", "v5"} {
		_, err := uc.Write(ctx, "app/token", []byte(value), secretsDomain.WriteOptions{MaxVersions: 3})
		require.NoError(t, err)
	}

	// Exactly the two oldest versions are destroyed; numbering stays contiguous.
	md, err := uc.Metadata(ctx, "app/token")
	require.NoError(t, err)
	require.Len(t, md.Versions, 5)
	assert.Equal(t, secretsDomain.StateDestroyed, md.Versions[0].State)
	assert.Equal(t, secretsDomain.StateDestroyed, md.Versions[1].State)
	assert.Equal(t, secretsDomain.StateLive, md.Versions[2].State)

	_, err = uc.Read(ctx, "app/token", 1)
	assert.ErrorIs(t, err, secretsDomain.ErrVersionDestroyed)

	got, err := uc.Read(ctx, "app/token", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("v3"), got.Plaintext)

	repo.mu.Lock()
	assert.Nil(t, repo.versions["app/token"][1].Ciphertext)
	repo.mu.Unlock()
}

func TestReadAfterKeyRotation(t *testing.T) {
	ctx := context.Background()

	uc, _, keys := newTestSecretUseCase(t)

	_, err := uc.Write(ctx, "app/token", []byte("old"), secretsDomain.WriteOptions{})
	require.NoError(t, err)

	keys.rotate(t)

	sv, err := uc.Write(ctx, "app/token", []byte("new"), secretsDomain.WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, uint(2), sv.KeyVersion)

	// The old version still decrypts with the DEK version recorded on its row.
	old, err := uc.Read(ctx, "app/token", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), old.Plaintext)
	assert.Equal(t, uint(1), old.KeyVersion)
}

func TestList(t *testing.T) {
	ctx := context.Background()

	uc, _, _ := newTestSecretUseCase(t)
	for _, path := range []string{"db/prod/password", "db/prod/user", "db/stage/password", "app"} {
		_, err := uc.Write(ctx, path, []byte("x"), secretsDomain.WriteOptions{})
		require.NoError(t, err)
	}

	root, err := uc.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "db/"}, root)

	db, err := uc.List(ctx, "db/")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod/", "stage/"}, db)

	prod, err := uc.List(ctx, "db/prod")
	require.NoError(t, err)
	assert.Equal(t, []string{"password", "user"}, prod)
}

func TestMetadataExcludesSecretMaterial(t *testing.T) {
	ctx := context.Background()

	uc, _, _ := newTestSecretUseCase(t)
	_, err := uc.Write(ctx, "app/token", []byte("one"), secretsDomain.WriteOptions{})
	require.NoError(t, err)

	md, err := uc.Metadata(ctx, "app/token")
	require.NoError(t, err)
	assert.Equal(t, uint(1), md.Secret.CurrentVersion)
	require.Len(t, md.Versions, 1)
	assert.Nil(t, md.Versions[0].Ciphertext)
	assert.Nil(t, md.Versions[0].Plaintext)
}
