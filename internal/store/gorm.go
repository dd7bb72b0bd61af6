package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// document is one row of the documents table: a path-addressed JSON
// record.
type document struct {
	Path      string `gorm:"primaryKey;type:varchar(512)"`
	Data      []byte
	UpdatedAt time.Time
}

func (document) TableName() string { return "documents" }

// GormStore is a SQL implementation of Store backed by a single
// documents table. RunTransaction takes a row lock on the record, so
// read-modify-writes on the same path serialize.
//
// Listen on this backend only observes writes made through the same
// process; SQL gives us no push feed.
type GormStore struct {
	db       *gorm.DB
	notifier *notifier
}

// NewGormStore wraps an open GORM session and migrates the documents
// table.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return &GormStore{db: db, notifier: newNotifier()}, nil
}

// OpenSQLite opens (or creates) a SQLite-backed store at the given file
// path. Use ":memory:" for an ephemeral database.
func OpenSQLite(file string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(file), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return NewGormStore(db)
}

// OpenPostgres opens a PostgreSQL-backed store.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}
	return NewGormStore(db)
}

// Get reads the record at path.
func (s *GormStore) Get(ctx context.Context, path string, out any) error {
	var doc document
	err := s.db.WithContext(ctx).Take(&doc, "path = ?", path).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decode(doc.Data, out)
}

// List reads all records one level below parent, ordered by path.
func (s *GormStore) List(ctx context.Context, parent string, out any) error {
	var docs []document
	err := s.db.WithContext(ctx).
		Where("path LIKE ?", parent+"/%").
		Order("path").
		Find(&docs).Error
	if err != nil {
		return fmt.Errorf("failed to list children of %s: %w", parent, err)
	}

	var records []json.RawMessage
	for _, doc := range docs {
		if _, ok := childOf(parent, doc.Path); ok {
			records = append(records, doc.Data)
		}
	}
	return decodeList(records, out)
}

// Set upserts the record at path.
func (s *GormStore) Set(ctx context.Context, path string, value any) error {
	record, err := encode(value)
	if err != nil {
		return err
	}
	doc := document{Path: path, Data: record, UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&doc).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.notifier.notify(path, record)
	return nil
}

// UpdateFields merges fields into the record at path under a row lock.
func (s *GormStore) UpdateFields(ctx context.Context, path string, fields map[string]any) error {
	var merged json.RawMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&doc, "path = ?", path).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		merged, err = mergeFields(doc.Data, fields)
		if err != nil {
			return err
		}
		doc.Data = merged
		doc.UpdatedAt = time.Now()
		return tx.Save(&doc).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	s.notifier.notify(path, merged)
	return nil
}

// Remove deletes the record at path.
func (s *GormStore) Remove(ctx context.Context, path string) error {
	if err := s.db.WithContext(ctx).Delete(&document{}, "path = ?", path).Error; err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// GenerateID returns a new unique child id.
func (s *GormStore) GenerateID(ctx context.Context, parent string) (string, error) {
	return uuid.New().String(), nil
}

// RunTransaction executes fn inside a database transaction holding a
// SELECT ... FOR UPDATE lock on the record's row, so concurrent
// transactions on the same path serialize instead of conflicting.
func (s *GormStore) RunTransaction(ctx context.Context, path string, fn TxFunc) (bool, error) {
	var written json.RawMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc document
		var current json.RawMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&doc, "path = ?", path).Error
		switch {
		case err == nil:
			current = doc.Data
		case errors.Is(err, gorm.ErrRecordNotFound):
			current = nil
		default:
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		written = next
		doc = document{Path: path, Data: next, UpdatedAt: time.Now()}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&doc).Error
	})
	if err != nil {
		return false, err
	}
	s.notifier.notify(path, written)
	return true, nil
}

// Listen subscribes fn to writes under parent made through this store
// instance.
func (s *GormStore) Listen(ctx context.Context, parent string, fn ChangeFunc) (func(), error) {
	return s.notifier.subscribe(parent, fn), nil
}
