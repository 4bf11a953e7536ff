package main

import (
	"log"

	corecmd "github.com/m3rciful/finbot/core/cmd"
	"github.com/m3rciful/finbot/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		EnvFiles:          []string{".env"},
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config))
		},
	})
	if err != nil {
		log.Fatalf("finbot: %v", err)
	}
}
