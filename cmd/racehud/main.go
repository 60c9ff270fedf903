// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/relabs-tech/racehud/internal/app"
	"github.com/relabs-tech/racehud/internal/config"
	"github.com/relabs-tech/racehud/internal/log"
)

func main() {
	logger := log.New("racehud")

	cliApp := cli.NewApp()
	cliApp.Name = "racehud"
	cliApp.Usage = "show live GPS speed on a transparent head-up display"
	cliApp.Version = "0.2.0"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: "./racehud_config.txt",
			Usage: "path to configuration file",
		},
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "paused",
			Usage: "publish the card with rendering paused",
		},
	}
	cliApp.Action = func(ctx *cli.Context) error {
		logger.Noticef("starting racehud (GPS speed → HUD)")

		if err := config.InitGlobal(ctx.String("config")); err != nil {
			return cli.NewExitError("failed to load config: "+err.Error(), 1)
		}
		log.SetLevel(config.Get().LogLevel)
		if ctx.Bool("v") {
			log.SetLevel(log.Debug)
		}

		return app.RunHUD(app.HUDOptions{StartPaused: ctx.Bool("paused")})
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
