package usecase

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
	keysService "github.com/sealbox/sealbox/internal/keys/service"
	"github.com/sealbox/sealbox/internal/metrics"
	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
	"github.com/sealbox/sealbox/internal/validation"
)

// keyUseCase implements KeyUseCase.
//
// Every operation derives its key material from the seal manager's master key
// at call time. While the engine is sealed the master key is nil and all
// operations fail with ErrSealed, so key material is never computable from a
// sealed engine.
type keyUseCase struct {
	txManager  database.TxManager
	keyRepo    KeyRepository
	keyWrapper keysService.KeyWrapper
	masterKeys MasterKeySource
	logger     *slog.Logger
	metrics    metrics.BusinessMetrics

	// createGroup collapses concurrent lazy creations of the same key name
	// into one repository round trip.
	createGroup singleflight.Group
}

// NewKeyUseCase creates a new key use case instance with the provided dependencies.
func NewKeyUseCase(
	txManager database.TxManager,
	keyRepo KeyRepository,
	keyWrapper keysService.KeyWrapper,
	masterKeys MasterKeySource,
	logger *slog.Logger,
	businessMetrics metrics.BusinessMetrics,
) KeyUseCase {
	return &keyUseCase{
		txManager:  txManager,
		keyRepo:    keyRepo,
		keyWrapper: keyWrapper,
		masterKeys: masterKeys,
		logger:     logger,
		metrics:    businessMetrics,
	}
}

// masterKey returns the unsealed master key or ErrSealed.
func (k *keyUseCase) masterKey() ([]byte, error) {
	mk := k.masterKeys.MasterKey()
	if mk == nil {
		return nil, sealDomain.ErrSealed
	}
	return mk, nil
}

func validateKeyName(name string) error {
	return validation.WrapValidationError(
		validation.KeyName.Validate(name),
	)
}

// CreateKey explicitly creates a named key with version 1.
func (k *keyUseCase) CreateKey(
	ctx context.Context,
	name string,
	alg keysDomain.Algorithm,
) (*keysDomain.EncryptionKey, error) {
	if err := validateKeyName(name); err != nil {
		return nil, err
	}
	if alg != keysDomain.AESGCM && alg != keysDomain.ChaCha20 {
		return nil, keysDomain.ErrUnsupportedAlgorithm
	}

	masterKey, err := k.masterKey()
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(masterKey)

	key, err := k.createKeyWithVersionOne(ctx, masterKey, name, alg)
	if err != nil {
		return nil, err
	}

	k.logger.Info("encryption key created",
		slog.String("key_name", name),
		slog.String("algorithm", string(alg)),
	)
	k.metrics.RecordOperation(ctx, "keys", "create", "success")
	return key, nil
}

// createKeyWithVersionOne inserts key metadata and its first wrapped DEK
// version in one transaction.
func (k *keyUseCase) createKeyWithVersionOne(
	ctx context.Context,
	masterKey []byte,
	name string,
	alg keysDomain.Algorithm,
) (*keysDomain.EncryptionKey, error) {
	dek := make([]byte, keysDomain.KeySize)
	if _, err := rand.Read(dek); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate dek")
	}
	defer keysDomain.Zero(dek)

	wrapped, nonce, err := k.keyWrapper.Wrap(masterKey, dek, name, 1)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &keysDomain.EncryptionKey{
		Name:                 name,
		Algorithm:            alg,
		CurrentVersion:       1,
		MinDecryptionVersion: 1,
		RowVersion:           1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	version := &keysDomain.KeyVersion{
		KeyName:    name,
		Version:    1,
		WrappedKey: wrapped,
		Nonce:      nonce,
		CreatedAt:  now,
	}

	err = k.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := k.keyRepo.CreateKey(ctx, key); err != nil {
			return err
		}
		return k.keyRepo.CreateVersion(ctx, version)
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GetActiveDek returns the unwrapped DEK at the key's current version,
// lazily creating the key when it does not exist yet.
func (k *keyUseCase) GetActiveDek(ctx context.Context, name string) (*keysDomain.Dek, error) {
	if err := validateKeyName(name); err != nil {
		return nil, err
	}

	key, err := k.keyRepo.GetKey(ctx, name)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		key, err = k.lazyCreate(ctx, name)
	}
	if err != nil {
		return nil, err
	}

	return k.unwrapVersion(ctx, key, key.CurrentVersion)
}

// lazyCreate creates the key with defaults on first use. Concurrent callers
// for the same name share one creation; a racing instance that loses the
// insert falls back to reading the winner's row.
func (k *keyUseCase) lazyCreate(ctx context.Context, name string) (*keysDomain.EncryptionKey, error) {
	result, err, _ := k.createGroup.Do(name, func() (interface{}, error) {
		masterKey, err := k.masterKey()
		if err != nil {
			return nil, err
		}
		defer keysDomain.Zero(masterKey)

		key, err := k.createKeyWithVersionOne(ctx, masterKey, name, keysDomain.DefaultAlgorithm)
		if apperrors.Is(err, apperrors.ErrConflict) {
			return k.keyRepo.GetKey(ctx, name)
		}
		if err != nil {
			return nil, err
		}

		k.logger.Info("encryption key lazily created", slog.String("key_name", name))
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*keysDomain.EncryptionKey), nil
}

// GetDekVersion returns the unwrapped DEK at a specific version.
func (k *keyUseCase) GetDekVersion(ctx context.Context, name string, version uint) (*keysDomain.Dek, error) {
	if err := validateKeyName(name); err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "version must be at least 1")
	}

	key, err := k.keyRepo.GetKey(ctx, name)
	if err != nil {
		return nil, err
	}

	return k.unwrapVersion(ctx, key, version)
}

// unwrapVersion enforces the retirement floor and unwraps one DEK version.
func (k *keyUseCase) unwrapVersion(
	ctx context.Context,
	key *keysDomain.EncryptionKey,
	version uint,
) (*keysDomain.Dek, error) {
	if version < key.MinDecryptionVersion {
		return nil, keysDomain.ErrKeyVersionRetired
	}

	masterKey, err := k.masterKey()
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(masterKey)

	kv, err := k.keyRepo.GetVersion(ctx, key.Name, version)
	if err != nil {
		return nil, err
	}

	plaintext, err := k.keyWrapper.Unwrap(masterKey, kv.WrappedKey, kv.Nonce, key.Name, version)
	if err != nil {
		k.logger.Error("dek unwrap failed",
			slog.String("key_name", key.Name),
			slog.Uint64("version", uint64(version)),
			slog.String("error", err.Error()),
		)
		k.metrics.RecordOperation(ctx, "keys", "unwrap", "error")
		return nil, err
	}

	return &keysDomain.Dek{
		KeyName:   key.Name,
		Version:   version,
		Algorithm: key.Algorithm,
		Key:       plaintext,
	}, nil
}

// Rotate appends a new DEK version and makes it current.
func (k *keyUseCase) Rotate(ctx context.Context, name string) (uint, error) {
	if err := validateKeyName(name); err != nil {
		return 0, err
	}

	masterKey, err := k.masterKey()
	if err != nil {
		return 0, err
	}
	defer keysDomain.Zero(masterKey)

	var newVersion uint
	err = k.txManager.WithTx(ctx, func(ctx context.Context) error {
		key, err := k.keyRepo.GetKey(ctx, name)
		if err != nil {
			return err
		}

		newVersion = key.CurrentVersion + 1

		dek := make([]byte, keysDomain.KeySize)
		if _, err := rand.Read(dek); err != nil {
			return apperrors.Wrap(err, "failed to generate dek")
		}
		defer keysDomain.Zero(dek)

		wrapped, nonce, err := k.keyWrapper.Wrap(masterKey, dek, name, newVersion)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := k.keyRepo.CreateVersion(ctx, &keysDomain.KeyVersion{
			KeyName:    name,
			Version:    newVersion,
			WrappedKey: wrapped,
			Nonce:      nonce,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		key.CurrentVersion = newVersion
		key.UpdatedAt = now
		return k.keyRepo.UpdateKey(ctx, key)
	})
	if err != nil {
		k.metrics.RecordOperation(ctx, "keys", "rotate", "error")
		return 0, err
	}

	k.logger.Info("encryption key rotated",
		slog.String("key_name", name),
		slog.Uint64("new_version", uint64(newVersion)),
	)
	k.metrics.RecordOperation(ctx, "keys", "rotate", "success")
	return newVersion, nil
}

// SetMinDecryptionVersion raises the floor below which versions refuse to unwrap.
func (k *keyUseCase) SetMinDecryptionVersion(ctx context.Context, name string, version uint) error {
	if err := validateKeyName(name); err != nil {
		return err
	}
	if version == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "version must be at least 1")
	}

	if _, err := k.masterKey(); err != nil {
		return err
	}

	err := k.txManager.WithTx(ctx, func(ctx context.Context) error {
		key, err := k.keyRepo.GetKey(ctx, name)
		if err != nil {
			return err
		}

		if version > key.CurrentVersion {
			return apperrors.Wrap(apperrors.ErrInvalidInput, "min decryption version cannot exceed current version")
		}
		// The floor only moves up.
		if version <= key.MinDecryptionVersion {
			return nil
		}

		key.MinDecryptionVersion = version
		key.UpdatedAt = time.Now().UTC()
		return k.keyRepo.UpdateKey(ctx, key)
	})
	if err != nil {
		return err
	}

	k.logger.Info("min decryption version raised",
		slog.String("key_name", name),
		slog.Uint64("min_decryption_version", uint64(version)),
	)
	return nil
}

// GetKey returns key metadata without any key material.
func (k *keyUseCase) GetKey(ctx context.Context, name string) (*keysDomain.EncryptionKey, error) {
	if err := validateKeyName(name); err != nil {
		return nil, err
	}
	return k.keyRepo.GetKey(ctx, name)
}

// ListKeys returns all key metadata ordered by name.
func (k *keyUseCase) ListKeys(ctx context.Context) ([]*keysDomain.EncryptionKey, error) {
	return k.keyRepo.ListKeys(ctx)
}
