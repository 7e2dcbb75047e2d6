package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/models"
)

// Vote operations. The (user_id, stream_id) primary key is the only guard
// against duplicate votes; both calls are single statements.

// CreateVote inserts the vote row, or reports ErrConflict if it already exists.
func (db *DB) CreateVote(ctx context.Context, userID, streamID string, at time.Time) error {
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Upvote{UserID: userID, StreamID: streamID, CreatedAt: at})
	if res.Error != nil {
		return fmt.Errorf("failed to store vote: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.ErrConflict, "already upvoted")
	}
	return nil
}

// DeleteVote removes the vote row if present.
func (db *DB) DeleteVote(ctx context.Context, userID, streamID string) (bool, error) {
	res := db.WithContext(ctx).Where("user_id = ? AND stream_id = ?", userID, streamID).Delete(&models.Upvote{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete vote: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (db *DB) GetVotesForItem(ctx context.Context, streamID string) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Upvote{}).Where("stream_id = ?", streamID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}
