package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/heap-dump/pkg/model"

	apperrors "github.com/heap-dump/pkg/errors"
)

// GormDumpRepository implements DumpRepository using GORM.
type GormDumpRepository struct {
	db *gorm.DB
}

// NewGormDumpRepository creates a new GormDumpRepository.
func NewGormDumpRepository(db *gorm.DB) *GormDumpRepository {
	return &GormDumpRepository{db: db}
}

// SaveDump inserts rec or replaces the row with the same ID.
func (r *GormDumpRepository) SaveDump(ctx context.Context, rec *model.DumpRecord) error {
	if rec == nil || rec.ID == "" {
		return apperrors.New(apperrors.CodeInvalidInput, "dump record needs an id")
	}
	row, err := recordFromModel(rec)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "encode dump stats", err)
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(row).Error
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "save dump record", err)
	}
	return nil
}

// GetDump retrieves a record by ID.
func (r *GormDumpRepository) GetDump(ctx context.Context, id string) (*model.DumpRecord, error) {
	var row HeapDumpRecord

	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "dump not found: %s", id)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "get dump record", err)
	}

	rec, err := row.ToModel()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "decode dump stats", err)
	}
	return rec, nil
}

// ListDumps returns records newest first. An empty scene lists all scenes.
func (r *GormDumpRepository) ListDumps(ctx context.Context, scene string, limit int) ([]*model.DumpRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows []HeapDumpRecord
	q := r.db.WithContext(ctx).Model(&HeapDumpRecord{})
	if scene != "" {
		q = q.Where("scene = ?", scene)
	}
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "list dump records", err)
	}

	out := make([]*model.DumpRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].ToModel()
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "decode dump stats", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteDump removes a record by ID.
func (r *GormDumpRepository) DeleteDump(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&HeapDumpRecord{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "delete dump record", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.CodeNotFound, "dump not found: %s", id)
	}
	return nil
}
