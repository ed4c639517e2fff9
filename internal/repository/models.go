// Package repository stores dump history in a relational database.
package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/heap-dump/pkg/model"
)

// HeapDumpRecord represents the heap_dump_records table.
type HeapDumpRecord struct {
	ID           string    `gorm:"column:id;type:varchar(64);primaryKey"`
	Scene        string    `gorm:"column:scene;type:varchar(255);index:idx_scene_created,priority:1"`
	Strategy     string    `gorm:"column:strategy;type:varchar(16)"`
	Status       string    `gorm:"column:status;type:varchar(16)"`
	StorageKey   string    `gorm:"column:storage_key;type:varchar(512)"`
	URL          string    `gorm:"column:url;type:varchar(1024)"`
	Format       string    `gorm:"column:format;type:varchar(8)"`
	Compression  string    `gorm:"column:compression;type:varchar(8)"`
	TotalSize    int64     `gorm:"column:total_size"`
	Warnings     int       `gorm:"column:warnings"`
	Stats        JSONField `gorm:"column:stats;type:json"`
	ErrorMessage string    `gorm:"column:error_message;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_scene_created,priority:2"`
	DurationMS   int64     `gorm:"column:duration_ms"`
}

// TableName returns the table name for HeapDumpRecord.
func (HeapDumpRecord) TableName() string {
	return "heap_dump_records"
}

// ToModel converts the row to a model.DumpRecord.
func (r *HeapDumpRecord) ToModel() (*model.DumpRecord, error) {
	rec := &model.DumpRecord{
		ID:          r.ID,
		Scene:       r.Scene,
		Strategy:    model.Strategy(r.Strategy),
		Status:      model.DumpStatus(r.Status),
		StorageKey:  r.StorageKey,
		URL:         r.URL,
		Format:      r.Format,
		Compression: r.Compression,
		Error:       r.ErrorMessage,
		CreatedAt:   r.CreatedAt,
		Duration:    time.Duration(r.DurationMS) * time.Millisecond,
	}

	if r.Stats != nil {
		if err := json.Unmarshal(r.Stats, &rec.Stats); err != nil {
			return nil, err
		}
	}
	// The summary columns win over a stale stats blob.
	rec.Stats.TotalSize = r.TotalSize
	rec.Stats.Warnings = r.Warnings

	return rec, nil
}

func recordFromModel(rec *model.DumpRecord) (*HeapDumpRecord, error) {
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return nil, err
	}
	return &HeapDumpRecord{
		ID:           rec.ID,
		Scene:        rec.Scene,
		Strategy:     string(rec.Strategy),
		Status:       string(rec.Status),
		StorageKey:   rec.StorageKey,
		URL:          rec.URL,
		Format:       rec.Format,
		Compression:  rec.Compression,
		TotalSize:    rec.Stats.TotalSize,
		Warnings:     rec.Stats.Warnings,
		Stats:        stats,
		ErrorMessage: rec.Error,
		CreatedAt:    rec.CreatedAt,
		DurationMS:   rec.Duration.Milliseconds(),
	}, nil
}

// JSONField is a custom type for handling JSON columns.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}
