// Package commands contains CLI command implementations for the application.
package commands

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"

	"github.com/sealbox/sealbox/internal/app"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
	sealService "github.com/sealbox/sealbox/internal/seal/service"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// decodeShare parses one base64-encoded unseal share.
func decodeShare(line string) ([]byte, error) {
	share, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return nil, fmt.Errorf("invalid share encoding: %w", err)
	}
	return share, nil
}

// ensureUnsealed makes the master key available for a one-shot command. It
// tries auto-unseal first and falls back to reading shares from the reader,
// one base64 share per line, until the threshold is met.
func ensureUnsealed(
	ctx context.Context,
	manager sealService.Manager,
	tuple IOTuple,
) error {
	if err := manager.TryAutoUnseal(ctx); err != nil {
		return fmt.Errorf("auto-unseal failed: %w", err)
	}
	if manager.MasterKey() != nil {
		return nil
	}

	fmt.Fprintln(tuple.Writer, "Engine is sealed. Enter unseal shares, one per line:")
	scanner := bufio.NewScanner(tuple.Reader)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		share, err := decodeShare(line)
		if err != nil {
			return err
		}

		err = manager.SubmitUnsealShare(ctx, share)
		sealDomain.Zero(share)
		if err == nil {
			fmt.Fprintln(tuple.Writer, "Engine unsealed.")
			return nil
		}

		var progress *sealDomain.ThresholdNotMetError
		if apperrors.As(err, &progress) {
			fmt.Fprintf(tuple.Writer, "Share accepted: %d of %d\n", progress.Progress, progress.Threshold)
			continue
		}
		return err
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return sealDomain.ErrSealed
}
