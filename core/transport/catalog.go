package transport

import (
	"context"
	"fmt"
	"time"

	"modloader/core/combo"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manifest is one stored manifest file.
type Manifest struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Path      string    `gorm:"column:path;size:255;uniqueIndex" json:"path"`
	ModuleID  string    `gorm:"column:module_id;size:255;index" json:"module_id"`
	Body      string    `gorm:"column:body;type:text" json:"body"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName overrides the table name used by GORM.
func (Manifest) TableName() string {
	return "module_manifests"
}

// Catalog serves manifests stored in a SQL table.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog creates a catalog over db.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// Migrate creates or updates the manifest table.
func (c *Catalog) Migrate() error {
	return c.db.AutoMigrate(&Manifest{})
}

// Fetch loads the rows for every path of req in one query. Missing rows are
// left out; the loader reports those modules as undefined.
func (c *Catalog) Fetch(ctx context.Context, req combo.Request) ([]combo.Payload, error) {
	keys := req.Keys()

	var rows []Manifest
	if err := c.db.WithContext(ctx).Where("path IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query manifests: %w", err)
	}
	byPath := make(map[string]Manifest, len(rows))
	for _, row := range rows {
		byPath[row.Path] = row
	}

	payloads := make([]combo.Payload, 0, len(rows))
	for i, key := range keys {
		if row, ok := byPath[key]; ok {
			payloads = append(payloads, combo.Payload{Path: req.Paths[i], Body: []byte(row.Body)})
		}
	}
	return payloads, nil
}

// Put inserts or replaces the manifest stored under path.
func (c *Catalog) Put(ctx context.Context, m Manifest) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now()
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"module_id", "body", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("store manifest %s: %w", m.Path, err)
	}
	return nil
}

// List returns every stored manifest ordered by path.
func (c *Catalog) List(ctx context.Context) ([]Manifest, error) {
	var rows []Manifest
	if err := c.db.WithContext(ctx).Order("path").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	return rows, nil
}
