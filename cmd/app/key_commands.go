package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/sealbox/sealbox/cmd/app/commands"
	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "rotate-key",
			Usage: "Rotate an encryption key to a new version",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "name",
					Aliases:  []string{"n"},
					Required: true,
					Usage:    "Encryption key name",
				},
			},
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

				return commands.RunRotateKey(
					ctx,
					sealManager,
					keyUseCase,
					container.Logger(),
					commands.DefaultIO(),
					cmd.String("name"),
				)
			},
		},
	}
}
