package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
	sealService "github.com/sealbox/sealbox/internal/seal/service"
)

// RunInit initializes the engine: generates the master key, splits it into
// shareCount shares with the given threshold, and prints the shares. The shares
// are shown exactly once; the engine remains sealed afterwards.
func RunInit(
	ctx context.Context,
	manager sealService.Manager,
	logger *slog.Logger,
	tuple IOTuple,
	shareCount, threshold int,
) error {
	shares, err := manager.Initialize(ctx, shareCount, threshold)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	fmt.Fprintf(tuple.Writer, "Engine initialized with %d shares, threshold %d.\n", shareCount, threshold)
	fmt.Fprintln(tuple.Writer, "Distribute these shares to separate custodians. They will not be shown again.")
	for i, share := range shares {
		fmt.Fprintf(tuple.Writer, "Share %d: %s\n", i+1, base64.StdEncoding.EncodeToString(share))
		sealDomain.Zero(share)
	}

	logger.Info("engine initialized",
		slog.Int("share_count", shareCount),
		slog.Int("threshold", threshold),
	)
	return nil
}

// RunUnseal submits unseal shares read from the input until the engine unseals.
// With auto-unseal configured, no shares are needed.
func RunUnseal(
	ctx context.Context,
	manager sealService.Manager,
	logger *slog.Logger,
	tuple IOTuple,
) error {
	if err := ensureUnsealed(ctx, manager, tuple); err != nil {
		return err
	}
	logger.Info("engine unsealed")
	return nil
}

// RunSeal clears the in-memory master key.
func RunSeal(
	ctx context.Context,
	manager sealService.Manager,
	logger *slog.Logger,
	tuple IOTuple,
) error {
	if err := manager.Seal(ctx); err != nil {
		return fmt.Errorf("failed to seal: %w", err)
	}
	fmt.Fprintln(tuple.Writer, "Engine sealed.")
	logger.Info("engine sealed")
	return nil
}
