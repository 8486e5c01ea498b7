package commands

import (
	"context"
	"fmt"
	"log/slog"

	keysUsecase "github.com/sealbox/sealbox/internal/keys/usecase"
	sealService "github.com/sealbox/sealbox/internal/seal/service"
)

// RunRotateKey rotates an encryption key: appends a new key version and makes
// it the active one. Prior versions stay decryptable; existing secret versions
// re-encrypt lazily on their next write. The engine must be unsealed, so the
// command runs the unseal ceremony first when needed.
func RunRotateKey(
	ctx context.Context,
	manager sealService.Manager,
	keys keysUsecase.KeyUseCase,
	logger *slog.Logger,
	tuple IOTuple,
	name string,
) error {
	if err := ensureUnsealed(ctx, manager, tuple); err != nil {
		return err
	}

	version, err := keys.Rotate(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to rotate key: %w", err)
	}

	fmt.Fprintf(tuple.Writer, "Key %q rotated to version %d.\n", name, version)
	logger.Info("encryption key rotated",
		slog.String("key_name", name),
		slog.Uint64("version", uint64(version)),
	)
	return nil
}
