// main.go
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/feedmill/gdeltflow/config"
	"github.com/feedmill/gdeltflow/database"
	"github.com/feedmill/gdeltflow/metrics"
)

func main() {
	log.Println("Starting GDELT Flow Pipeline...")

	// .env is optional; env vars still override the YAML either way.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment overrides from .env")
	}

	configPath := os.Getenv("GDELTFLOW_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config.yaml"
		}
	}

	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	log.Printf("Configuration loaded. Feed base: %s, store database: %s",
		config.AppConfig.Feed.URLBase, config.AppConfig.Mongo.Database)

	if err := database.InitStore(config.AppConfig.Mongo); err != nil {
		log.Fatalf("Error initializing document store: %v", err)
	}
	defer database.CloseStore()

	if config.AppConfig.Metrics.Port != "" {
		go metrics.Serve(config.AppConfig.Metrics.Port)
	}

	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
