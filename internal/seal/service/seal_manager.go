package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	apperrors "github.com/sealbox/sealbox/internal/errors"
	"github.com/sealbox/sealbox/internal/metrics"
	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
	"github.com/sealbox/sealbox/internal/shamir"
)

// verificationInfo is the HKDF info string binding the verification value to
// its purpose.
const verificationInfo = "sealbox/seal-verification/v1"

// sealManager implements Manager.
//
// All mutable state (master key, share accumulator) sits behind one mutex so
// two concurrent submissions can never both believe they supplied the final
// share and race to unseal with different candidate keys.
type sealManager struct {
	repo    SealConfigRepository
	keeper  Keeper // nil when auto-unseal is not configured
	logger  *slog.Logger
	metrics metrics.BusinessMetrics

	mu        sync.Mutex
	masterKey []byte
	// shares accumulates distinct submitted shares, keyed by digest so a
	// duplicate submission never advances progress.
	shares map[[sha256.Size]byte][]byte
}

// NewSealManager creates a seal manager. keeper may be nil to disable
// auto-unseal. The engine starts Sealed (or Uninitialized if no configuration
// row exists yet); the accumulator is empty on every restart.
func NewSealManager(
	repo SealConfigRepository,
	keeper Keeper,
	logger *slog.Logger,
	businessMetrics metrics.BusinessMetrics,
) Manager {
	return &sealManager{
		repo:    repo,
		keeper:  keeper,
		logger:  logger,
		metrics: businessMetrics,
		shares:  make(map[[sha256.Size]byte][]byte),
	}
}

// Initialize generates and splits a fresh master key.
func (s *sealManager) Initialize(ctx context.Context, shareCount, threshold int) ([][]byte, error) {
	if threshold < 1 || shareCount < threshold || shareCount > shamir.MaxShares {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "share count and threshold must satisfy 1 <= t <= n <= 255")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.Get(ctx); err == nil {
		return nil, sealDomain.ErrAlreadyInitialized
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	masterKey := make([]byte, sealDomain.MasterKeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate master key")
	}
	defer sealDomain.Zero(masterKey)

	shares, err := shamir.Split(masterKey, shareCount, threshold)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to split master key")
	}

	clusterID := uuid.Must(uuid.NewV7())
	verification, err := deriveVerificationValue(masterKey, clusterID)
	if err != nil {
		return nil, err
	}

	var wrapped []byte
	if s.keeper != nil {
		wrapped, err = s.keeper.Encrypt(ctx, masterKey)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to wrap master key for auto-unseal")
		}
	}

	now := time.Now().UTC()
	cfg := &sealDomain.SealConfig{
		ID:                sealDomain.SealConfigID,
		Initialized:       true,
		ShareCount:        shareCount,
		Threshold:         threshold,
		VerificationValue: verification,
		WrappedMasterKey:  wrapped,
		ClusterID:         clusterID,
		RowVersion:        1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			// Another instance won the initialization race.
			return nil, sealDomain.ErrAlreadyInitialized
		}
		return nil, err
	}

	s.logger.Info("seal initialized",
		slog.Int("share_count", shareCount),
		slog.Int("threshold", threshold),
		slog.String("cluster_id", clusterID.String()),
		slog.Bool("auto_unseal", s.keeper != nil),
	)
	s.metrics.SetSealState(ctx, false)

	// The shares leave the platform here and are never stored.
	return shares, nil
}

// SubmitUnsealShare accumulates one share of the unseal ceremony.
func (s *sealManager) SubmitUnsealShare(ctx context.Context, share []byte) error {
	if len(share) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "share must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.masterKey != nil {
		return sealDomain.ErrAlreadyUnsealed
	}

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return sealDomain.ErrNotInitialized
		}
		return err
	}

	digest := sha256.Sum256(share)
	if _, dup := s.shares[digest]; !dup {
		s.shares[digest] = append([]byte(nil), share...)
	}

	if len(s.shares) < cfg.Threshold {
		return &sealDomain.ThresholdNotMetError{
			Progress:  len(s.shares),
			Threshold: cfg.Threshold,
		}
	}

	collected := make([][]byte, 0, len(s.shares))
	for _, sh := range s.shares {
		collected = append(collected, sh)
	}

	candidate, err := shamir.Combine(collected)
	s.resetAccumulatorLocked()
	if err != nil {
		// Full detail stays server-side; the caller learns only that the
		// ceremony failed.
		s.logger.Error("unseal share combination failed", slog.String("error", err.Error()))
		s.metrics.RecordOperation(ctx, "seal", "unseal_submit", "error")
		return sealDomain.ErrInvalidKey
	}

	if err := s.verifyAndStoreLocked(ctx, candidate, cfg); err != nil {
		return err
	}

	s.logger.Info("engine unsealed", slog.String("cluster_id", cfg.ClusterID.String()))
	s.metrics.RecordOperation(ctx, "seal", "unseal_submit", "success")
	return nil
}

// Seal clears the in-memory master key. Idempotent if already sealed.
func (s *sealManager) Seal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.masterKey == nil {
		return nil
	}

	sealDomain.Zero(s.masterKey)
	s.masterKey = nil
	s.resetAccumulatorLocked()

	s.logger.Info("engine sealed")
	s.metrics.SetSealState(ctx, false)
	return nil
}

// MasterKey returns a copy of the master key, or nil while sealed.
func (s *sealManager) MasterKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.masterKey == nil {
		return nil
	}
	return append([]byte(nil), s.masterKey...)
}

// TryAutoUnseal restores the master key from its KMS-wrapped copy.
func (s *sealManager) TryAutoUnseal(ctx context.Context) error {
	if s.keeper == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.masterKey != nil {
		return nil
	}

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return sealDomain.ErrNotInitialized
		}
		return err
	}
	if len(cfg.WrappedMasterKey) == 0 {
		return nil
	}

	candidate, err := s.keeper.Decrypt(ctx, cfg.WrappedMasterKey)
	if err != nil {
		s.logger.Error("auto-unseal decryption failed", slog.String("error", err.Error()))
		return sealDomain.ErrInvalidKey
	}

	if err := s.verifyAndStoreLocked(ctx, candidate, cfg); err != nil {
		return err
	}

	s.logger.Info("engine auto-unsealed", slog.String("cluster_id", cfg.ClusterID.String()))
	return nil
}

// Status reports the current seal state.
func (s *sealManager) Status(ctx context.Context) (sealDomain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return sealDomain.Status{State: sealDomain.StateUninitialized}, nil
		}
		return sealDomain.Status{}, err
	}

	state := sealDomain.StateSealed
	if s.masterKey != nil {
		state = sealDomain.StateUnsealed
	}

	return sealDomain.Status{
		Initialized: true,
		State:       state,
		Progress:    len(s.shares),
		ShareCount:  cfg.ShareCount,
		Threshold:   cfg.Threshold,
		ClusterID:   cfg.ClusterID,
	}, nil
}

// verifyAndStoreLocked checks a candidate master key against the stored
// verification value and installs it on success. The caller holds the mutex.
func (s *sealManager) verifyAndStoreLocked(
	ctx context.Context,
	candidate []byte,
	cfg *sealDomain.SealConfig,
) error {
	verification, err := deriveVerificationValue(candidate, cfg.ClusterID)
	if err != nil {
		sealDomain.Zero(candidate)
		return err
	}

	if subtle.ConstantTimeCompare(verification, cfg.VerificationValue) != 1 {
		sealDomain.Zero(candidate)
		s.logger.Warn("unseal verification mismatch, accumulator cleared")
		s.metrics.RecordOperation(ctx, "seal", "unseal_verify", "error")
		return sealDomain.ErrInvalidKey
	}

	s.masterKey = candidate
	s.metrics.SetSealState(ctx, true)
	return nil
}

// resetAccumulatorLocked wipes and discards all collected shares.
// The caller holds the mutex.
func (s *sealManager) resetAccumulatorLocked() {
	for _, sh := range s.shares {
		sealDomain.Zero(sh)
	}
	s.shares = make(map[[sha256.Size]byte][]byte)
}

// deriveVerificationValue derives the stored verification value from the master
// key via HKDF-SHA256, salted with the cluster id. The value proves knowledge
// of the key without revealing it, and shares from another cluster can never
// verify against it.
func deriveVerificationValue(masterKey []byte, clusterID uuid.UUID) ([]byte, error) {
	out := make([]byte, sha256.Size)
	reader := hkdf.New(sha256.New, masterKey, clusterID[:], []byte(verificationInfo))
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("failed to derive verification value: %w", err)
	}
	return out, nil
}
