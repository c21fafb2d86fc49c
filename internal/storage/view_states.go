package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/kairix_panel/internal/model"
)

const errorMessageViewStateNotFound = "storage: view state not found"

// ErrViewStateNotFound indicates no view state row matches the requested id.
var ErrViewStateNotFound = errors.New(errorMessageViewStateNotFound)

// ViewStateRepository persists panel view states.
type ViewStateRepository struct {
	database *gorm.DB
	now      func() time.Time
}

// NewViewStateRepository builds a repository over database.
func NewViewStateRepository(database *gorm.DB) *ViewStateRepository {
	return &ViewStateRepository{database: database, now: time.Now}
}

// Find loads the view state with the given id.
func (repository *ViewStateRepository) Find(ctx context.Context, viewStateID string) (model.ViewStateRecord, error) {
	trimmedID := strings.TrimSpace(viewStateID)
	if trimmedID == "" {
		return model.ViewStateRecord{}, ErrViewStateNotFound
	}
	var record model.ViewStateRecord
	queryErr := repository.database.WithContext(ctx).First(&record, "id = ?", trimmedID).Error
	if errors.Is(queryErr, gorm.ErrRecordNotFound) {
		return model.ViewStateRecord{}, ErrViewStateNotFound
	}
	if queryErr != nil {
		return model.ViewStateRecord{}, queryErr
	}
	return record, nil
}

// Save inserts or replaces the payload of a view state and refreshes its activity time.
func (repository *ViewStateRepository) Save(ctx context.Context, viewStateID string, payload string) error {
	record := model.ViewStateRecord{
		ID:        viewStateID,
		Payload:   payload,
		UpdatedAt: repository.now().UTC(),
	}
	return repository.database.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&record).Error
}

// Delete removes a view state. Deleting a missing row is not an error.
func (repository *ViewStateRepository) Delete(ctx context.Context, viewStateID string) error {
	return repository.database.WithContext(ctx).Delete(&model.ViewStateRecord{}, "id = ?", viewStateID).Error
}

// DeleteIdleBefore removes view states whose last activity precedes cutoff.
func (repository *ViewStateRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := repository.database.WithContext(ctx).
		Where("updated_at < ?", cutoff.UTC()).
		Delete(&model.ViewStateRecord{})
	return result.RowsAffected, result.Error
}
