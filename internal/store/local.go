package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Row is the generic persisted form used by the local backend: a logical
// table name plus a JSON blob of logical fields. Keeping the schema generic
// means the local backend and Baserow expose the exact same Store surface.
type Row struct {
	ID        string `gorm:"primaryKey;size:40"`
	TableName string `gorm:"size:64;index;column:table_name"`
	Fields    string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Local is a gorm-backed Store used for dev mode and tests. SQLite covers
// the single-process case; a MySQL DSN works for a shared dev database.
type Local struct {
	db *gorm.DB
}

// OpenLocal opens a Local store. driver is "sqlite" (default) or "mysql";
// dsn is a file path / ":memory:" for sqlite, a standard DSN for mysql.
func OpenLocal(driver, dsn string) (*Local, error) {
	var dial gorm.Dialector
	switch driver {
	case "", "sqlite":
		dial = sqlite.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("store: unknown local driver %q", driver)
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open local (%s): %w", driver, err)
	}
	return NewLocal(db)
}

// NewLocal wraps an existing gorm connection, migrating the row table.
func NewLocal(db *gorm.DB) (*Local, error) {
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Local{db: db}, nil
}

// Create inserts a record and returns it with its generated id.
func (l *Local) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	blob, err := json.Marshal(fields)
	if err != nil {
		return Record{}, fmt.Errorf("store: encode fields: %w", err)
	}
	row := Row{ID: uuid.NewString(), TableName: table, Fields: string(blob)}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Record{}, fmt.Errorf("store: create in %s: %w", table, err)
	}
	return recordFromRow(row)
}

// Get fetches one record by id. Returns ErrNotFound when the id does not
// exist in the table.
func (l *Local) Get(ctx context.Context, table, id string) (Record, error) {
	var row Row
	err := l.db.WithContext(ctx).
		Where("id = ? AND table_name = ?", id, table).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: get %s/%s: %w", table, id, err)
	}
	return recordFromRow(row)
}

// Query returns the records of a table matching filter. The local backend
// filters in memory; the tables in this workflow stay small.
func (l *Local) Query(ctx context.Context, table string, filter *Filter) ([]Record, error) {
	var rows []Row
	err := l.db.WithContext(ctx).
		Where("table_name = ?", table).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", table, err)
	}
	var out []Record
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Update merges fields into an existing record and returns the result.
func (l *Local) Update(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	rec, err := l.Get(ctx, table, id)
	if err != nil {
		return Record{}, err
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	blob, err := json.Marshal(rec.Fields)
	if err != nil {
		return Record{}, fmt.Errorf("store: encode fields: %w", err)
	}
	err = l.db.WithContext(ctx).Model(&Row{}).
		Where("id = ? AND table_name = ?", id, table).
		Update("fields", string(blob)).Error
	if err != nil {
		return Record{}, fmt.Errorf("store: update %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// Delete removes a record. Returns ErrNotFound when nothing was deleted.
func (l *Local) Delete(ctx context.Context, table, id string) error {
	res := l.db.WithContext(ctx).
		Where("id = ? AND table_name = ?", id, table).
		Delete(&Row{})
	if res.Error != nil {
		return fmt.Errorf("store: delete %s/%s: %w", table, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func recordFromRow(row Row) (Record, error) {
	fields := map[string]any{}
	if row.Fields != "" {
		if err := json.Unmarshal([]byte(row.Fields), &fields); err != nil {
			return Record{}, fmt.Errorf("store: decode row %s: %w", row.ID, err)
		}
	}
	return Record{ID: row.ID, Fields: fields}, nil
}
