package guest

import (
	"context"
	"errors"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// localRow is one slot of the client-side store, mirroring the single
// well-known local-storage key of the browser original.
type localRow struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value"`
}

func (localRow) TableName() string { return "local_store" }

// SQLiteKV persists ledger state in a local sqlite database.
type SQLiteKV struct {
	db *gorm.DB
}

// NewSQLiteKV opens (and migrates) the local database at path.
func NewSQLiteKV(path string) (*SQLiteKV, error) {
	if path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sqlite path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "open local store")
	}
	if err := db.AutoMigrate(&localRow{}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "migrate local store")
	}
	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) (string, error) {
	var row localRow
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "read local store")
	}
	return row.Value, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&localRow{Key: key, Value: value}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "write local store")
	}
	return nil
}

func (s *SQLiteKV) Del(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&localRow{}, "key = ?", key).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorage, err, "delete from local store")
	}
	return nil
}
