package database

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/models"
)

// Space operations

func (db *DB) CountSpacesByHost(ctx context.Context, hostID string) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Space{}).Where("host_id = ?", hostID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count spaces: %w", err)
	}
	return n, nil
}

func (db *DB) JoinCodeTaken(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Space{}).Where("join_code = ?", code).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check join code: %w", err)
	}
	return n > 0, nil
}

func (db *DB) CreateSpace(ctx context.Context, space *models.Space) error {
	return db.WithContext(ctx).Create(space).Error
}

func (db *DB) GetSpaceByID(ctx context.Context, id string) (*models.Space, error) {
	var space models.Space
	if err := db.WithContext(ctx).First(&space, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "space")
	}
	return &space, nil
}

func (db *DB) GetSpaceByJoinCode(ctx context.Context, code string) (*models.Space, error) {
	var space models.Space
	if err := db.WithContext(ctx).First(&space, "join_code = ?", code).Error; err != nil {
		return nil, notFound(err, "space")
	}
	return &space, nil
}

func (db *DB) ListSpacesByHost(ctx context.Context, hostID string, limit int) ([]models.Space, error) {
	var spaces []models.Space
	if err := db.WithContext(ctx).Where("host_id = ?", hostID).
		Order("created_at ASC").
		Limit(limit).
		Find(&spaces).Error; err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	return spaces, nil
}

// LockSpace takes a row lock on the space for the rest of the transaction.
// SQLite has no row locks; its single connection already serialises writers.
func (db *DB) LockSpace(ctx context.Context, id string) (*models.Space, error) {
	var space models.Space
	if err := db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&space, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "space")
	}
	return &space, nil
}

// DeleteSpace removes the space with its streams, their votes and the
// playing pointer. Must run inside InTx.
func (db *DB) DeleteSpace(ctx context.Context, id string) error {
	tx := db.WithContext(ctx)
	streamIDs := tx.Model(&models.Stream{}).Select("id").Where("space_id = ?", id)

	if err := tx.Where("stream_id IN (?)", streamIDs).Delete(&models.Upvote{}).Error; err != nil {
		return fmt.Errorf("failed to delete votes: %w", err)
	}
	if err := tx.Where("space_id = ?", id).Delete(&models.CurrentStream{}).Error; err != nil {
		return fmt.Errorf("failed to delete current stream: %w", err)
	}
	if err := tx.Where("space_id = ?", id).Delete(&models.Stream{}).Error; err != nil {
		return fmt.Errorf("failed to delete streams: %w", err)
	}
	res := tx.Where("id = ?", id).Delete(&models.Space{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete space: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.ErrNotFound, "space not found")
	}
	return nil
}
