package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/relabs-tech/racehud/internal/app"
	"github.com/relabs-tech/racehud/internal/config"
	"github.com/relabs-tech/racehud/internal/log"
)

func main() {
	logger := log.New("gps-producer")

	cliApp := cli.NewApp()
	cliApp.Name = "gps_producer"
	cliApp.Usage = "publish NMEA fixes from the GPS receiver to MQTT"
	cliApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: "./racehud_config.txt",
			Usage: "path to configuration file",
		},
	}
	cliApp.Action = func(ctx *cli.Context) error {
		logger.Noticef("starting racehud GPS producer (NMEA → MQTT)")

		if err := config.InitGlobal(ctx.String("config")); err != nil {
			return cli.NewExitError("failed to load config: "+err.Error(), 1)
		}
		log.SetLevel(config.Get().LogLevel)

		return app.RunGPSProducer()
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
