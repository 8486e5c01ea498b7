package usecase

import (
	"context"
	"time"

	"github.com/sealbox/sealbox/internal/metrics"
	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
)

// secretUseCaseWithMetrics decorates SecretUseCase with metrics instrumentation.
type secretUseCaseWithMetrics struct {
	next    SecretUseCase
	metrics metrics.BusinessMetrics
}

// NewSecretUseCaseWithMetrics wraps a SecretUseCase with metrics recording.
func NewSecretUseCaseWithMetrics(useCase SecretUseCase, m metrics.BusinessMetrics) SecretUseCase {
	return &secretUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (s *secretUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordOperation(ctx, "secrets", operation, status)
	s.metrics.RecordDuration(ctx, "secrets", operation, time.Since(start), status)
}

// Write records metrics for secret write operations.
func (s *secretUseCaseWithMetrics) Write(
	ctx context.Context,
	path string,
	data []byte,
	opts secretsDomain.WriteOptions,
) (*secretsDomain.SecretVersion, error) {
	start := time.Now()
	sv, err := s.next.Write(ctx, path, data, opts)
	s.record(ctx, "secret_write", start, err)
	return sv, err
}

// Read records metrics for secret read operations.
func (s *secretUseCaseWithMetrics) Read(
	ctx context.Context,
	path string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	start := time.Now()
	sv, err := s.next.Read(ctx, path, version)
	s.record(ctx, "secret_read", start, err)
	return sv, err
}

// Delete records metrics for soft-delete operations.
func (s *secretUseCaseWithMetrics) Delete(ctx context.Context, path string, versions []uint) error {
	start := time.Now()
	err := s.next.Delete(ctx, path, versions)
	s.record(ctx, "secret_delete", start, err)
	return err
}

// Undelete records metrics for undelete operations.
func (s *secretUseCaseWithMetrics) Undelete(ctx context.Context, path string, versions []uint) error {
	start := time.Now()
	err := s.next.Undelete(ctx, path, versions)
	s.record(ctx, "secret_undelete", start, err)
	return err
}

// Destroy records metrics for destroy operations.
func (s *secretUseCaseWithMetrics) Destroy(ctx context.Context, path string, versions []uint) error {
	start := time.Now()
	err := s.next.Destroy(ctx, path, versions)
	s.record(ctx, "secret_destroy", start, err)
	return err
}

// List records metrics for prefix listings.
func (s *secretUseCaseWithMetrics) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	children, err := s.next.List(ctx, prefix)
	s.record(ctx, "secret_list", start, err)
	return children, err
}

// Metadata records metrics for metadata reads.
func (s *secretUseCaseWithMetrics) Metadata(ctx context.Context, path string) (*secretsDomain.Metadata, error) {
	start := time.Now()
	md, err := s.next.Metadata(ctx, path)
	s.record(ctx, "secret_metadata", start, err)
	return md, err
}
