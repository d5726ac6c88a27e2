package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/customeros/voicemail-transcriber/config"
	"github.com/customeros/voicemail-transcriber/server"
)

func main() {
	app := &cli.App{
		Name:  "voicemail-transcriber",
		Usage: "transcribe voicemail emails and republish them to the mailbox",
		Action: func(_ *cli.Context) error {
			return runOnce()
		},
		Commands: []*cli.Command{
			{
				Name:  "once",
				Usage: "process the current unread voicemails and exit",
				Action: func(_ *cli.Context) error {
					return runOnce()
				},
			},
			{
				Name:  "daemon",
				Usage: "process voicemails on a schedule until stopped",
				Action: func(_ *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					return server.NewServer(cfg).RunDaemon()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("voicemail-transcriber: %v", err)
	}
}

func runOnce() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return server.NewServer(cfg).RunOnce()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return cfg, nil
}
