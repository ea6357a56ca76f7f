package main

import (
	"os"

	"booklend/internal/config"
)

const defaultMigrationsDir = "db/migrations"

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return defaultMigrationsDir
}

// databaseDSN resolves the DSN through the same layers as the API server.
func databaseDSN() (string, error) {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN, nil
}
