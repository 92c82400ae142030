package main

import (
	"errors"
	"log"

	"github.com/joho/godotenv"

	"github.com/m3rciful/scanbot/bots/scanner/app"
	"github.com/m3rciful/scanbot/bots/scanner/config"
	corecmd "github.com/m3rciful/scanbot/core/cmd"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env loaded: %v", err)
	}

	err := corecmd.Run(corecmd.Options{
		Name:              "scanner",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil && !errors.Is(err, corecmd.ErrVersionShown) {
		log.Fatalf("scanner: %v", err)
	}
}
