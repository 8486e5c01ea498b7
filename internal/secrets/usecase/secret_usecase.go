package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
	keysService "github.com/sealbox/sealbox/internal/keys/service"
	keysUsecase "github.com/sealbox/sealbox/internal/keys/usecase"
	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
	"github.com/sealbox/sealbox/internal/validation"
)

// secretUseCase implements SecretUseCase.
//
// Secret data is encrypted under the engine's named key at its current
// version; each version row records that identity so reads keep working after
// rotation. A write re-encrypts nothing: older versions stay bound to the DEK
// version they were written under.
type secretUseCase struct {
	txManager   database.TxManager
	secretRepo  SecretRepository
	keys        keysUsecase.KeyUseCase
	aeadManager keysService.AEADManager
	logger      *slog.Logger

	// keyName is the engine key every secret version encrypts under.
	keyName string
	// defaultMaxVersions applies to paths created without an explicit bound.
	defaultMaxVersions uint
}

// NewSecretUseCase creates a new secret use case instance with the provided dependencies.
func NewSecretUseCase(
	txManager database.TxManager,
	secretRepo SecretRepository,
	keys keysUsecase.KeyUseCase,
	aeadManager keysService.AEADManager,
	logger *slog.Logger,
	keyName string,
	defaultMaxVersions uint,
) SecretUseCase {
	return &secretUseCase{
		txManager:          txManager,
		secretRepo:         secretRepo,
		keys:               keys,
		aeadManager:        aeadManager,
		logger:             logger,
		keyName:            keyName,
		defaultMaxVersions: defaultMaxVersions,
	}
}

func validateSecretPath(path string) error {
	return validation.WrapValidationError(
		validation.SecretPath.Validate(path),
	)
}

// versionAAD binds a ciphertext to its path and version so a version row
// copied to another path or position fails authentication.
func versionAAD(path string, version uint) []byte {
	return []byte(fmt.Sprintf("%s:%d", path, version))
}

// Write appends a new version at the path, creating the path on first write.
func (s *secretUseCase) Write(
	ctx context.Context,
	path string,
	data []byte,
	opts secretsDomain.WriteOptions,
) (*secretsDomain.SecretVersion, error) {
	if err := validateSecretPath(path); err != nil {
		return nil, err
	}

	dek, err := s.keys.GetActiveDek(ctx, s.keyName)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(dek.Key)

	cipher, err := s.aeadManager.CreateCipher(dek.Key, dek.Algorithm)
	if err != nil {
		return nil, err
	}

	var stored *secretsDomain.SecretVersion
	err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
		secret, err := s.secretRepo.GetSecret(ctx, path)
		if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		var newVersion uint
		now := time.Now().UTC()
		if secret == nil {
			if opts.CAS != nil && *opts.CAS != 0 {
				return secretsDomain.ErrCasMismatch
			}
			newVersion = 1
			secret = &secretsDomain.Secret{
				Path:           path,
				CurrentVersion: newVersion,
				MaxVersions:    opts.MaxVersions,
				CasRequired:    opts.CasRequired,
				RowVersion:     1,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.secretRepo.CreateSecret(ctx, secret); err != nil {
				if apperrors.Is(err, apperrors.ErrConflict) {
					return secretsDomain.ErrCasMismatch
				}
				return err
			}
		} else {
			if secret.CasRequired && opts.CAS == nil {
				return secretsDomain.ErrCasRequired
			}
			if opts.CAS != nil && *opts.CAS != secret.CurrentVersion {
				return secretsDomain.ErrCasMismatch
			}
			newVersion = secret.CurrentVersion + 1

			secret.CurrentVersion = newVersion
			secret.UpdatedAt = now
			if err := s.secretRepo.UpdateSecret(ctx, secret); err != nil {
				if apperrors.Is(err, apperrors.ErrConflict) {
					return secretsDomain.ErrCasMismatch
				}
				return err
			}
		}

		ciphertext, nonce, err := cipher.Encrypt(data, versionAAD(path, newVersion))
		if err != nil {
			return err
		}

		stored = &secretsDomain.SecretVersion{
			Path:       path,
			Version:    newVersion,
			Ciphertext: ciphertext,
			Nonce:      nonce,
			KeyName:    dek.KeyName,
			KeyVersion: dek.Version,
			State:      secretsDomain.StateLive,
			CreatedAt:  now,
		}
		if err := s.secretRepo.CreateVersion(ctx, stored); err != nil {
			if apperrors.Is(err, apperrors.ErrConflict) {
				return secretsDomain.ErrCasMismatch
			}
			return err
		}

		return s.pruneLocked(ctx, secret)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("secret written",
		slog.String("path", path),
		slog.Uint64("version", uint64(stored.Version)),
	)

	// The caller gets metadata only.
	result := *stored
	result.Ciphertext = nil
	result.Nonce = nil
	return &result, nil
}

// pruneLocked destroys the oldest surviving versions past the retention bound.
// Runs inside the write transaction.
func (s *secretUseCase) pruneLocked(ctx context.Context, secret *secretsDomain.Secret) error {
	maxVersions := secret.MaxVersions
	if maxVersions == 0 {
		maxVersions = s.defaultMaxVersions
	}
	if maxVersions == 0 {
		return nil
	}

	versions, err := s.secretRepo.ListVersions(ctx, secret.Path)
	if err != nil {
		return err
	}

	var surviving []*secretsDomain.SecretVersion
	for _, v := range versions {
		if v.State != secretsDomain.StateDestroyed {
			surviving = append(surviving, v)
		}
	}

	for i := 0; uint(len(surviving)-i) > maxVersions; i++ {
		oldest := surviving[i]
		if err := s.secretRepo.SetVersionState(
			ctx, secret.Path, oldest.Version, secretsDomain.StateDestroyed, true,
		); err != nil {
			return err
		}
		s.logger.Info("secret version pruned",
			slog.String("path", secret.Path),
			slog.Uint64("version", uint64(oldest.Version)),
		)
	}
	return nil
}

// Read decrypts one version; version 0 means the current version.
func (s *secretUseCase) Read(
	ctx context.Context,
	path string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	if err := validateSecretPath(path); err != nil {
		return nil, err
	}

	secret, err := s.secretRepo.GetSecret(ctx, path)
	if err != nil {
		return nil, err
	}

	if version == 0 {
		version = secret.CurrentVersion
	}
	if version == 0 {
		return nil, secretsDomain.ErrSecretNotFound
	}

	sv, err := s.secretRepo.GetVersion(ctx, path, version)
	if err != nil {
		return nil, err
	}

	switch sv.State {
	case secretsDomain.StateDestroyed:
		return nil, secretsDomain.ErrVersionDestroyed
	case secretsDomain.StateSoftDeleted:
		return nil, secretsDomain.ErrSecretNotFound
	}

	dek, err := s.keys.GetDekVersion(ctx, sv.KeyName, sv.KeyVersion)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(dek.Key)

	cipher, err := s.aeadManager.CreateCipher(dek.Key, dek.Algorithm)
	if err != nil {
		return nil, err
	}

	plaintext, err := cipher.Decrypt(sv.Ciphertext, sv.Nonce, versionAAD(path, sv.Version))
	if err != nil {
		s.logger.Error("secret decryption failed",
			slog.String("path", path),
			slog.Uint64("version", uint64(sv.Version)),
			slog.String("error", err.Error()),
		)
		return nil, keysDomain.ErrDecryptionFailed
	}

	sv.Plaintext = plaintext
	return sv, nil
}

// resolveVersions defaults an empty version list to the current version.
func resolveVersions(secret *secretsDomain.Secret, versions []uint) ([]uint, error) {
	if len(versions) > 0 {
		return versions, nil
	}
	if secret.CurrentVersion == 0 {
		return nil, secretsDomain.ErrSecretNotFound
	}
	return []uint{secret.CurrentVersion}, nil
}

// Delete soft-deletes the given versions (current version when empty).
func (s *secretUseCase) Delete(ctx context.Context, path string, versions []uint) error {
	if err := validateSecretPath(path); err != nil {
		return err
	}

	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		secret, err := s.secretRepo.GetSecret(ctx, path)
		if err != nil {
			return err
		}
		targets, err := resolveVersions(secret, versions)
		if err != nil {
			return err
		}

		for _, version := range targets {
			sv, err := s.secretRepo.GetVersion(ctx, path, version)
			if err != nil {
				return err
			}
			switch sv.State {
			case secretsDomain.StateSoftDeleted:
				continue
			case secretsDomain.StateDestroyed:
				return secretsDomain.ErrVersionDestroyed
			}
			if err := s.secretRepo.SetVersionState(
				ctx, path, version, secretsDomain.StateSoftDeleted, false,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// Undelete restores soft-deleted versions to live.
func (s *secretUseCase) Undelete(ctx context.Context, path string, versions []uint) error {
	if err := validateSecretPath(path); err != nil {
		return err
	}
	if len(versions) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "undelete requires explicit versions")
	}

	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.secretRepo.GetSecret(ctx, path); err != nil {
			return err
		}

		for _, version := range versions {
			sv, err := s.secretRepo.GetVersion(ctx, path, version)
			if err != nil {
				return err
			}
			switch sv.State {
			case secretsDomain.StateLive:
				continue
			case secretsDomain.StateDestroyed:
				return secretsDomain.ErrVersionDestroyed
			}
			if err := s.secretRepo.SetVersionState(
				ctx, path, version, secretsDomain.StateLive, false,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// Destroy permanently erases the ciphertext of the given versions. Idempotent.
func (s *secretUseCase) Destroy(ctx context.Context, path string, versions []uint) error {
	if err := validateSecretPath(path); err != nil {
		return err
	}

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		secret, err := s.secretRepo.GetSecret(ctx, path)
		if err != nil {
			return err
		}
		targets, err := resolveVersions(secret, versions)
		if err != nil {
			return err
		}

		for _, version := range targets {
			sv, err := s.secretRepo.GetVersion(ctx, path, version)
			if err != nil {
				return err
			}
			if sv.State == secretsDomain.StateDestroyed {
				continue
			}
			if err := s.secretRepo.SetVersionState(
				ctx, path, version, secretsDomain.StateDestroyed, true,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("secret versions destroyed", slog.String("path", path))
	return nil
}

// List returns the immediate child segments under a prefix, directory-style.
func (s *secretUseCase) List(ctx context.Context, prefix string) ([]string, error) {
	if prefix != "" {
		if err := validateSecretPath(strings.TrimSuffix(prefix, "/")); err != nil {
			return nil, err
		}
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
	}

	paths, err := s.secretRepo.ListPaths(ctx, prefix)
	if err != nil {
		return nil, err
	}

	// Collapse full paths to their first segment under the prefix; deeper
	// entries appear once as "segment/".
	var children []string
	seen := make(map[string]struct{})
	for _, path := range paths {
		rest := strings.TrimPrefix(path, prefix)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			rest = rest[:idx+1]
		}
		if _, dup := seen[rest]; dup {
			continue
		}
		seen[rest] = struct{}{}
		children = append(children, rest)
	}
	return children, nil
}

// Metadata returns the path's version history without any secret material.
func (s *secretUseCase) Metadata(ctx context.Context, path string) (*secretsDomain.Metadata, error) {
	if err := validateSecretPath(path); err != nil {
		return nil, err
	}

	secret, err := s.secretRepo.GetSecret(ctx, path)
	if err != nil {
		return nil, err
	}

	versions, err := s.secretRepo.ListVersions(ctx, path)
	if err != nil {
		return nil, err
	}

	return &secretsDomain.Metadata{
		Secret:   secret,
		Versions: versions,
	}, nil
}
