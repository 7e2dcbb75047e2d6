// Package stream runs a space's queue: submissions, votes and advancing
// playback.
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/internal/resolver"
	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/database"
	"github.com/music-spaces/pkg/events"
	"github.com/music-spaces/pkg/models"
)

type TrackResolver interface {
	Resolve(ctx context.Context, rawURL string) (*resolver.Track, error)
}

// SpaceGetter looks up spaces, usually through the space cache.
type SpaceGetter interface {
	GetSpace(ctx context.Context, id string) (*models.Space, error)
}

type Service struct {
	db       *database.DB
	spaces   SpaceGetter
	resolver TrackResolver
	locker   Locker
	limiter  *Limiter
	events   events.Publisher
	limits   config.LimitsConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewService(db *database.DB, spaces SpaceGetter, resolver TrackResolver, locker Locker, publisher events.Publisher, limits config.LimitsConfig, log *zap.Logger) *Service {
	return &Service{
		db:       db,
		spaces:   spaces,
		resolver: resolver,
		locker:   locker,
		limiter:  NewLimiter(limits),
		events:   publisher,
		limits:   limits,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type SubmitInput struct {
	SpaceID   string
	CreatorID string
	URL       string
}

// Submit resolves the URL and queues it. Capacity, duplicate and quota
// checks run in the same transaction as the insert.
func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (*StreamView, error) {
	if in.CreatorID == "" {
		in.CreatorID = userID
	}

	if _, err := s.spaces.GetSpace(ctx, in.SpaceID); err != nil {
		return nil, err
	}
	if in.CreatorID != userID {
		if _, err := s.db.GetUserByID(ctx, in.CreatorID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Field("creatorId", "unknown user")
			}
			return nil, err
		}
	}

	track, err := s.resolver.Resolve(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	stream := &models.Stream{
		ID:          uuid.NewString(),
		SpaceID:     in.SpaceID,
		Type:        track.Platform,
		ExtractedID: track.ExtractedID,
		Title:       track.Title,
		SmallImg:    track.SmallImg,
		BigImg:      track.BigImg,
		URL:         in.URL,
		AddedBy:     userID,
		CreatorID:   in.CreatorID,
	}

	err = s.db.InTx(ctx, func(tx *database.DB) error {
		if _, err := tx.LockSpace(ctx, in.SpaceID); err != nil {
			return err
		}

		now, err := s.insertTime(ctx, tx, in.SpaceID)
		if err != nil {
			return err
		}
		stream.CreatedAt = now

		queued, err := tx.CountUnplayed(ctx, in.SpaceID)
		if err != nil {
			return err
		}
		if queued >= int64(s.limits.QueueCapacity) {
			return apperr.New(apperr.ErrCapacityExceeded, "Space is full")
		}

		sub := Submission{
			SpaceID:     in.SpaceID,
			SubmitterID: userID,
			CreatorID:   in.CreatorID,
			URL:         in.URL,
			At:          now,
		}
		return s.limiter.CheckAndRecord(ctx, tx, sub, func() error {
			return tx.CreateStream(ctx, stream)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("stream added",
		zap.String("space_id", in.SpaceID),
		zap.String("stream_id", stream.ID),
		zap.String("platform", string(stream.Type)))
	events.Emit(ctx, s.events, s.log, events.EventTypeStreamAdded, in.SpaceID, userID, events.StreamPayload{
		StreamID: stream.ID,
		Title:    stream.Title,
		Platform: string(stream.Type),
	})

	return &StreamView{Stream: *stream}, nil
}

// insertTime is read under the space lock and kept strictly after the
// newest stream in the space, so created_at orders ties by insertion.
func (s *Service) insertTime(ctx context.Context, tx *database.DB, spaceID string) (time.Time, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	latest, err := tx.LatestCreatedAt(ctx, spaceID)
	if err != nil {
		return time.Time{}, err
	}
	if !now.After(latest) {
		now = latest.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return now, nil
}

// Queue returns the ranked unplayed streams and the playing pointer as seen
// by viewerID.
func (s *Service) Queue(ctx context.Context, spaceID, viewerID string) (*QueueState, error) {
	space, err := s.spaces.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	items, err := s.db.ListUnplayed(ctx, spaceID, viewerID)
	if err != nil {
		return nil, err
	}

	active, err := s.activeStream(ctx, spaceID)
	if err != nil {
		return nil, err
	}

	return &QueueState{
		Streams:      newStreamViews(items),
		ActiveStream: active,
		HostID:       space.HostID,
		IsHost:       space.HostID == viewerID,
		SpaceName:    space.Name,
	}, nil
}

func (s *Service) activeStream(ctx context.Context, spaceID string) (*ActiveStream, error) {
	current, err := s.db.GetCurrentStream(ctx, spaceID)
	if err != nil || current == nil {
		return nil, err
	}

	stream, err := s.db.GetStream(ctx, current.StreamID)
	if errors.Is(err, apperr.ErrNotFound) {
		// removed since it started playing
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &ActiveStream{
		SpaceID:  current.SpaceID,
		StreamID: current.StreamID,
		UserID:   current.UserID,
		Stream:   stream,
	}, nil
}

// MyStreams lists every stream credited to userID across spaces.
func (s *Service) MyStreams(ctx context.Context, userID string) ([]StreamView, error) {
	items, err := s.db.ListByCreator(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newStreamViews(items), nil
}

// Upvote records userID's vote. A second vote on the same stream is
// ErrConflict.
func (s *Service) Upvote(ctx context.Context, userID, streamID string) (int64, error) {
	stream, err := s.db.GetStream(ctx, streamID)
	if err != nil {
		return 0, err
	}

	if err := s.db.CreateVote(ctx, userID, streamID, s.now()); err != nil {
		return 0, err
	}

	count, err := s.db.GetVotesForItem(ctx, streamID)
	if err != nil {
		return 0, err
	}

	events.Emit(ctx, s.events, s.log, events.EventTypeStreamUpvoted, stream.SpaceID, userID, events.VotePayload{
		StreamID: streamID,
		Upvotes:  count,
	})
	return count, nil
}

// Downvote withdraws userID's vote. Withdrawing a vote that does not exist
// succeeds.
func (s *Service) Downvote(ctx context.Context, userID, streamID string) (int64, error) {
	stream, err := s.db.GetStream(ctx, streamID)
	if err != nil {
		return 0, err
	}

	removed, err := s.db.DeleteVote(ctx, userID, streamID)
	if err != nil {
		return 0, err
	}

	count, err := s.db.GetVotesForItem(ctx, streamID)
	if err != nil {
		return 0, err
	}

	if removed {
		events.Emit(ctx, s.events, s.log, events.EventTypeStreamDownvoted, stream.SpaceID, userID, events.VotePayload{
			StreamID: streamID,
			Upvotes:  count,
		})
	}
	return count, nil
}

// Remove deletes a stream credited to the user. Anything else, including a
// stream the user only added for someone else, is a silent no-op.
func (s *Service) Remove(ctx context.Context, spaceID, streamID, userID string) error {
	var removed int64
	err := s.db.InTx(ctx, func(tx *database.DB) error {
		n, err := tx.RemoveOwnStream(ctx, spaceID, streamID, userID)
		if err != nil || n == 0 {
			return err
		}
		removed = n

		current, err := tx.GetCurrentStream(ctx, spaceID)
		if err != nil {
			return err
		}
		if current != nil && current.StreamID == streamID {
			return tx.DeleteCurrentStream(ctx, spaceID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		events.Emit(ctx, s.events, s.log, events.EventTypeStreamRemoved, spaceID, userID, events.StreamPayload{StreamID: streamID})
	}
	return nil
}

// Empty clears the unplayed queue, keeping whatever is playing. The host
// clears the whole space; anyone else only what is credited to them.
func (s *Service) Empty(ctx context.Context, spaceID, userID string) (int64, error) {
	space, err := s.spaces.GetSpace(ctx, spaceID)
	if err != nil {
		return 0, err
	}
	isHost := space.HostID == userID

	var removed int64
	err = s.db.InTx(ctx, func(tx *database.DB) error {
		if _, err := tx.LockSpace(ctx, spaceID); err != nil {
			return err
		}

		current, err := tx.GetCurrentStream(ctx, spaceID)
		if err != nil {
			return err
		}
		keep := ""
		if current != nil {
			keep = current.StreamID
		}

		if isHost {
			removed, err = tx.ClearQueue(ctx, spaceID, keep)
		} else {
			removed, err = tx.ClearCreatorQueue(ctx, spaceID, userID, keep)
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	scope := "own"
	if isHost {
		scope = "space"
	}
	events.Emit(ctx, s.events, s.log, events.EventTypeQueueEmptied, spaceID, userID, events.QueueEmptiedPayload{
		Removed: removed,
		Scope:   scope,
	})
	return removed, nil
}
