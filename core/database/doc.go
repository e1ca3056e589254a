// Package database opens the SQL database backing the manifest catalog.
//
// It wraps GORM with the MySQL and SQLite drivers. MySQL is meant for shared
// deployments; SQLite keeps a single-node catalog in a local file.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", zap.Error(err))
//	}
package database
