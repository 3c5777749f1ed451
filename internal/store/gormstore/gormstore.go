// Package gormstore persists images, operations and notes in a SQL database
// through GORM. SQLite is the default local backend; MySQL is supported for
// shared setups.
package gormstore

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/store"
)

type imageRow struct {
	ID       string    `gorm:"primaryKey;size:32"`
	Blob     []byte    `gorm:"not null"`
	MimeType string    `gorm:"size:64"`
	SavedAt  time.Time `gorm:"index;not null"`
}

func (imageRow) TableName() string { return "images" }

type operationRow struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement"`
	ImageID   string `gorm:"index;size:32;not null"`
	Type      string `gorm:"size:16;not null"`
	X         int    `gorm:"not null"`
	Y         int    `gorm:"not null"`
	Color     string `gorm:"size:16;not null"`
	Timestamp int64  `gorm:"not null"`
}

func (operationRow) TableName() string { return "operations" }

type noteRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	ImageID   string `gorm:"index;size:32;not null"`
	X         int    `gorm:"not null"`
	Y         int    `gorm:"not null"`
	Text      string `gorm:"type:text;not null"`
	Color     string `gorm:"size:16"`
	Timestamp int64  `gorm:"index;not null"`
}

func (noteRow) TableName() string { return "notes" }

// Store is the GORM implementation of store.Store.
type Store struct {
	db *gorm.DB
}

// New migrates the schema on db and returns a Store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		panic("database connection cannot be nil for gormstore")
	}
	if err := db.AutoMigrate(&imageRow{}, &operationRow{}, &noteRow{}); err != nil {
		return nil, fmt.Errorf("%w: gorm: migrate: %w", store.ErrUnavailable, err)
	}
	return &Store{db: db}, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: gorm: open sqlite %s: %w", store.ErrUnavailable, path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: gorm: sqlite handle: %w", store.ErrUnavailable, err)
	}
	// one writer keeps SQLite from reporting "database is locked"
	sqlDB.SetMaxOpenConns(1)
	return New(db)
}

// OpenMySQL connects to a MySQL server using dsn.
func OpenMySQL(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: gorm: open mysql: %w", store.ErrUnavailable, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: gorm: mysql handle: %w", store.ErrUnavailable, err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return New(db)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
}

func wrap(err error, format string, args ...any) error {
	return fmt.Errorf("%w: gorm: %s: %w", store.ErrUnavailable, fmt.Sprintf(format, args...), err)
}

func (s *Store) PutImage(ctx context.Context, img store.Image) error {
	row := imageRow{ID: img.ID, Blob: img.Blob, MimeType: img.MimeType, SavedAt: img.SavedAt}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return wrap(err, "put image %s", img.ID)
	}
	return nil
}

func (s *Store) Images(ctx context.Context) ([]store.Image, error) {
	var rows []imageRow
	if err := s.db.WithContext(ctx).Order("saved_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, wrap(err, "list images")
	}
	out := make([]store.Image, len(rows))
	for i, r := range rows {
		out[i] = store.Image{ID: r.ID, Blob: r.Blob, MimeType: r.MimeType, SavedAt: r.SavedAt}
	}
	return out, nil
}

func (s *Store) ClearImages(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&imageRow{}).Error; err != nil {
		return wrap(err, "clear images")
	}
	return nil
}

func (s *Store) AppendOperation(ctx context.Context, imageID string, op oplog.Operation) error {
	row := toOperationRow(imageID, op)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrap(err, "append operation for image %s", imageID)
	}
	return nil
}

func (s *Store) OperationsByImage(ctx context.Context, imageID string) ([]oplog.Operation, error) {
	var rows []operationRow
	err := s.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("seq asc").
		Find(&rows).Error
	if err != nil {
		return nil, wrap(err, "operations for image %s", imageID)
	}
	out := make([]oplog.Operation, len(rows))
	for i, r := range rows {
		out[i] = oplog.Operation{Type: r.Type, X: r.X, Y: r.Y, Color: r.Color, Timestamp: r.Timestamp}
	}
	return out, nil
}

func (s *Store) ClearOperationsByImage(ctx context.Context, imageID string) error {
	if err := s.db.WithContext(ctx).Where("image_id = ?", imageID).Delete(&operationRow{}).Error; err != nil {
		return wrap(err, "clear operations for image %s", imageID)
	}
	return nil
}

// replaceBatchSize keeps each INSERT far below SQLite's and MySQL's bound
// variable limits (7 columns per row).
const replaceBatchSize = 500

// ReplaceOperations deletes and rewrites the operations of imageID in one
// transaction.
func (s *Store) ReplaceOperations(ctx context.Context, imageID string, ops []oplog.Operation) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", imageID).Delete(&operationRow{}).Error; err != nil {
			return err
		}
		if len(ops) == 0 {
			return nil
		}
		rows := make([]operationRow, len(ops))
		for i, op := range ops {
			rows[i] = toOperationRow(imageID, op)
		}
		return tx.CreateInBatches(&rows, replaceBatchSize).Error
	})
	if err != nil {
		return wrap(err, "replace operations for image %s (%d ops)", imageID, len(ops))
	}
	return nil
}

func (s *Store) AppendNote(ctx context.Context, n store.Note) (string, error) {
	row := noteRow{
		ID:        uuid.NewString(),
		ImageID:   n.ImageID,
		X:         n.X,
		Y:         n.Y,
		Text:      n.Text,
		Color:     n.Color,
		Timestamp: n.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", wrap(err, "append note for image %s", n.ImageID)
	}
	return row.ID, nil
}

func (s *Store) NotesByImage(ctx context.Context, imageID string) ([]store.Note, error) {
	var rows []noteRow
	err := s.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("timestamp asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, wrap(err, "notes for image %s", imageID)
	}
	out := make([]store.Note, len(rows))
	for i, r := range rows {
		out[i] = store.Note{ID: r.ID, ImageID: r.ImageID, X: r.X, Y: r.Y, Text: r.Text, Color: r.Color, Timestamp: r.Timestamp}
	}
	return out, nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&noteRow{})
	if res.Error != nil {
		return wrap(res.Error, "delete note %s", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("note %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ClearNotesByImage(ctx context.Context, imageID string) error {
	if err := s.db.WithContext(ctx).Where("image_id = ?", imageID).Delete(&noteRow{}).Error; err != nil {
		return wrap(err, "clear notes for image %s", imageID)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return wrap(err, "close")
	}
	return sqlDB.Close()
}

func toOperationRow(imageID string, op oplog.Operation) operationRow {
	return operationRow{
		ImageID:   imageID,
		Type:      op.Type,
		X:         op.X,
		Y:         op.Y,
		Color:     op.Color,
		Timestamp: op.Timestamp,
	}
}
