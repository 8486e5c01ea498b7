package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/sealbox/sealbox/cmd/app/commands"
	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/config"
)

func getSealCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "init",
			Usage: "Initialize the engine and print the unseal shares",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "shares",
					Aliases: []string{"n"},
					Value:   0,
					Usage:   "Number of unseal shares to generate (defaults to SEAL_SHARE_COUNT)",
				},
				&cli.IntFlag{
					Name:    "threshold",
					Aliases: []string{"t"},
					Value:   0,
					Usage:   "Number of shares required to unseal (defaults to SEAL_THRESHOLD)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				shareCount := int(cmd.Int("shares"))
				if shareCount == 0 {
					shareCount = cfg.SealShareCount
				}
				threshold := int(cmd.Int("threshold"))
				if threshold == 0 {
					threshold = cfg.SealThreshold
				}

				sealManager, err := container.SealManager()
				if err != nil {
					return err
				}

				return commands.RunInit(
					ctx,
					sealManager,
					container.Logger(),
					commands.DefaultIO(),
					shareCount,
					threshold,
				)
			},
		},
		{
			Name:  "unseal",
			Usage: "Unseal the engine by submitting shares from stdin",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				sealManager, err := container.SealManager()
				if err != nil {
					return err
				}

				return commands.RunUnseal(ctx, sealManager, container.Logger(), commands.DefaultIO())
			},
		},
		{
			Name:  "seal",
			Usage: "Clear the in-memory master key",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				sealManager, err := container.SealManager()
				if err != nil {
					return err
				}

				return commands.RunSeal(ctx, sealManager, container.Logger(), commands.DefaultIO())
			},
		},
	}
}
