// Package catalog is the persistent state store for one identity. It owns the
// media item, album, album membership and settings tables in an embedded
// SQLite database and exposes typed operations on them.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/jon4hz/photomirror/catalog/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrInvalidStatus is returned when a write carries a status value outside the
// closed status set of the target entity.
var ErrInvalidStatus = errors.New("invalid status value")

// Catalog wraps the gorm.DB instance for one identity.
type Catalog struct {
	db *gorm.DB
}

// Open opens (or creates) the catalog database inside dataDir and performs
// migrations.
func Open(dataDir string) (*Catalog, error) {
	return openFile(filepath.Join(dataDir, "photomirror.db"))
}

func openFile(path string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if err := db.AutoMigrate(
		&models.MediaItem{},
		&models.Album{},
		&models.AlbumItem{},
		&models.Setting{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn against a transactional catalog so that all writes of
// one indexing or sync page commit together.
func (c *Catalog) Transaction(fn func(tx *Catalog) error) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Catalog{db: tx})
	})
}
