package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/music-spaces/pkg/models"
)

// RankedStream is a stream with its derived vote count and whether the viewer
// holds one of those votes.
type RankedStream struct {
	models.Stream `gorm:"embedded"`
	UpvoteCount   int64
	ViewerVotes   int64
}

func (r RankedStream) HaveUpvoted() bool { return r.ViewerVotes > 0 }

// ranked orders by descending vote count, then earliest submission.
func (db *DB) ranked(ctx context.Context, viewerID string) *gorm.DB {
	return db.WithContext(ctx).Table("streams").
		Select(`streams.*,
			COUNT(upvotes.user_id) AS upvote_count,
			COALESCE(SUM(CASE WHEN upvotes.user_id = ? THEN 1 ELSE 0 END), 0) AS viewer_votes`, viewerID).
		Joins("LEFT JOIN upvotes ON upvotes.stream_id = streams.id").
		Group("streams.id").
		Order("upvote_count DESC, streams.created_at ASC, streams.id ASC")
}

// Queue operations

func (db *DB) ListUnplayed(ctx context.Context, spaceID, viewerID string) ([]RankedStream, error) {
	var items []RankedStream
	if err := db.ranked(ctx, viewerID).
		Where("streams.space_id = ? AND streams.played = ?", spaceID, false).
		Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	return items, nil
}

// TopUnplayed returns the next stream to play, or nil when the queue is empty.
func (db *DB) TopUnplayed(ctx context.Context, spaceID string) (*RankedStream, error) {
	var items []RankedStream
	if err := db.ranked(ctx, "").
		Where("streams.space_id = ? AND streams.played = ?", spaceID, false).
		Limit(1).
		Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to select next stream: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (db *DB) ListByCreator(ctx context.Context, creatorID string) ([]RankedStream, error) {
	var items []RankedStream
	if err := db.ranked(ctx, creatorID).
		Where("streams.creator_id = ?", creatorID).
		Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	return items, nil
}

func (db *DB) GetStream(ctx context.Context, id string) (*models.Stream, error) {
	var stream models.Stream
	if err := db.WithContext(ctx).First(&stream, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "stream")
	}
	return &stream, nil
}

func (db *DB) CountUnplayed(ctx context.Context, spaceID string) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Stream{}).
		Where("space_id = ? AND played = ?", spaceID, false).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

// HasDuplicate reports whether creatorID already has url queued and unplayed
// in the space, or submitted it at or after since.
func (db *DB) HasDuplicate(ctx context.Context, spaceID, creatorID, url string, since time.Time) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Stream{}).
		Where("space_id = ? AND creator_id = ? AND url = ?", spaceID, creatorID, url).
		Where("(played = ? OR created_at >= ?)", false, since).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check duplicates: %w", err)
	}
	return n > 0, nil
}

// CountSubmissions counts what addedBy submitted for creatorID in the space
// at or after since, played or not.
func (db *DB) CountSubmissions(ctx context.Context, spaceID, addedBy, creatorID string, since time.Time) (int64, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Stream{}).
		Where("space_id = ? AND added_by = ? AND creator_id = ? AND created_at >= ?", spaceID, addedBy, creatorID, since).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return n, nil
}

// LatestCreatedAt returns the newest created_at in the space, or the zero
// time when it has no streams.
func (db *DB) LatestCreatedAt(ctx context.Context, spaceID string) (time.Time, error) {
	var latest models.Stream
	if err := db.WithContext(ctx).Select("created_at").
		Where("space_id = ?", spaceID).
		Order("created_at DESC").
		Limit(1).
		Find(&latest).Error; err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest stream: %w", err)
	}
	return latest.CreatedAt, nil
}

func (db *DB) CreateStream(ctx context.Context, stream *models.Stream) error {
	if err := db.WithContext(ctx).Create(stream).Error; err != nil {
		return fmt.Errorf("failed to add stream: %w", err)
	}
	return nil
}

// RemoveOwnStream deletes streamID if userID is its creator. Whoever added
// it on the creator's behalf cannot. Zero rows is not an error.
func (db *DB) RemoveOwnStream(ctx context.Context, spaceID, streamID, userID string) (int64, error) {
	return db.deleteStreams(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ? AND space_id = ? AND creator_id = ?", streamID, spaceID, userID)
	})
}

// ClearQueue deletes every unplayed stream in the space except keepID.
func (db *DB) ClearQueue(ctx context.Context, spaceID, keepID string) (int64, error) {
	return db.deleteStreams(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("space_id = ? AND played = ? AND id <> ?", spaceID, false, keepID)
	})
}

// ClearCreatorQueue deletes creatorID's unplayed streams in the space except keepID.
func (db *DB) ClearCreatorQueue(ctx context.Context, spaceID, creatorID, keepID string) (int64, error) {
	return db.deleteStreams(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("space_id = ? AND creator_id = ? AND played = ? AND id <> ?", spaceID, creatorID, false, keepID)
	})
}

// deleteStreams removes the matching streams and their votes, returning how
// many streams went. Callers run it inside InTx.
func (db *DB) deleteStreams(ctx context.Context, where func(*gorm.DB) *gorm.DB) (int64, error) {
	tx := db.WithContext(ctx)

	var ids []string
	if err := where(tx.Model(&models.Stream{})).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find streams: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := tx.Where("stream_id IN ?", ids).Delete(&models.Upvote{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete votes: %w", err)
	}
	res := tx.Where("id IN ?", ids).Delete(&models.Stream{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete streams: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// MarkPlayed flags the stream as played. Already played streams keep their
// original timestamp.
func (db *DB) MarkPlayed(ctx context.Context, streamID string, at time.Time) error {
	err := db.WithContext(ctx).Model(&models.Stream{}).
		Where("id = ? AND played = ?", streamID, false).
		Updates(map[string]interface{}{"played": true, "played_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to mark stream played: %w", err)
	}
	return nil
}

func (db *DB) StreamExists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Stream{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check stream: %w", err)
	}
	return n > 0, nil
}

// Current stream operations

// GetCurrentStream returns nil when the space is idle.
func (db *DB) GetCurrentStream(ctx context.Context, spaceID string) (*models.CurrentStream, error) {
	var current models.CurrentStream
	err := db.WithContext(ctx).First(&current, "space_id = ?", spaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current stream: %w", err)
	}
	return &current, nil
}

func (db *DB) UpsertCurrentStream(ctx context.Context, current *models.CurrentStream) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "space_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stream_id", "user_id", "updated_at"}),
	}).Create(current).Error
	if err != nil {
		return fmt.Errorf("failed to set current stream: %w", err)
	}
	return nil
}

func (db *DB) DeleteCurrentStream(ctx context.Context, spaceID string) error {
	if err := db.WithContext(ctx).Where("space_id = ?", spaceID).Delete(&models.CurrentStream{}).Error; err != nil {
		return fmt.Errorf("failed to clear current stream: %w", err)
	}
	return nil
}
