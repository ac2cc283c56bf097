package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Black-And-White-Club/points-ledger/app"
	"github.com/Black-And-White-Club/points-ledger/config"
	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "points-ledger",
		Usage: "points ledger and honor awarding service",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP and NATS endpoints",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Value:   "config.yaml",
						Usage:   "path to the configuration file",
						EnvVars: []string{"CONFIG_PATH"},
					},
				},
				Action: serve,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(c *cli.Context) error {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	return application.Run(ctx)
}
