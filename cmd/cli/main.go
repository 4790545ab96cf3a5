package main

import (
	"fmt"
	"log"
	"os"

	"predindep/internal"
	"predindep/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	defer logger.Sync()

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
