package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/sealbox/sealbox/cmd/app/commands"
	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "status",
			Usage: "Report seal state and encryption key inventory",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				sealManager, err := container.SealManager()
				if err != nil {
					return err
				}
				keyUseCase, err := container.KeyUseCase()
				if err != nil {
					return err
				}

				return commands.RunStatus(
					ctx,
					sealManager,
					keyUseCase,
					commands.DefaultIO(),
					cfg.KeyRotationCadence,
				)
			},
		},
		{
			Name:  "sweeper",
			Usage: "Run the lease expiration sweeper agent",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunSweeper(ctx, version)
			},
		},
	}
}
