// Package config provides configuration management for modloader.
//
// It utilizes Viper for loading configuration from environment variables,
// an optional config.yaml and an optional .env file.
//
// # Configuration Structure
//
// The Config struct is the central repository for all application settings, divided into subsections:
//   - Server: HTTP server settings (port, API key, combo mount, watch)
//   - Database: catalog connection details (MySQL or SQLite)
//   - Storage: S3/MinIO credentials and bucket settings
//   - Log: Logging level and format
//   - Loader: round timeout and round limit
//   - Combo: URL batching and per-package settings
//   - Transport: where manifests are fetched from
//
// Every scalar setting has a default taken from its struct tag and can be
// overridden by an environment variable named after its key
// (loader.round_timeout becomes LOADER_ROUND_TIMEOUT). Package maps are read
// from config.yaml only.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
