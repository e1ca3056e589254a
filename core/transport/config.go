package transport

import (
	"fmt"
	"time"

	"modloader/core/combo"
	"modloader/core/storage"

	"gorm.io/gorm"
)

// Config selects and configures the transport used by the loader.
type Config struct {
	// Kind is one of http, storage, file, catalog.
	Kind string `mapstructure:"kind" default:"file"`
	// Dir is the manifest root of the file transport.
	Dir string `mapstructure:"dir" default:"manifests"`
	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10"`
}

const (
	KindHTTP    = "http"
	KindStorage = "storage"
	KindFile    = "file"
	KindCatalog = "catalog"
)

// Backends opens the clients a transport needs. Only the one matching the
// configured kind is called.
type Backends struct {
	Storage     func() (storage.Client, error)
	Bucket      string
	Concurrency int
	Database    func() (*gorm.DB, error)
}

// New builds the transport selected by cfg.Kind.
func New(cfg Config, b Backends) (combo.Transport, error) {
	switch cfg.Kind {
	case KindHTTP:
		return NewHTTP(time.Duration(cfg.TimeoutSeconds)*time.Second, nil), nil
	case KindFile, "":
		return NewFile(cfg.Dir), nil
	case KindStorage:
		if b.Storage == nil {
			return nil, fmt.Errorf("storage transport needs a storage client")
		}
		client, err := b.Storage()
		if err != nil {
			return nil, err
		}
		return NewStorage(client, b.Bucket, b.Concurrency), nil
	case KindCatalog:
		if b.Database == nil {
			return nil, fmt.Errorf("catalog transport needs a database")
		}
		db, err := b.Database()
		if err != nil {
			return nil, err
		}
		return NewCatalog(db), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}
