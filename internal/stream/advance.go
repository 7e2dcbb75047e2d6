package stream

import (
	"context"

	"go.uber.org/zap"

	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/database"
	"github.com/music-spaces/pkg/events"
	"github.com/music-spaces/pkg/models"
)

// Advance finishes the playing stream and promotes the top ranked unplayed
// one. It returns nil when the queue is empty, leaving the space idle.
//
// Advances for one space are serialised by the locker and by the row lock
// on the space, so each call promotes at most one stream.
func (s *Service) Advance(ctx context.Context, spaceID, userID string) (*StreamView, error) {
	space, err := s.spaces.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if space.HostID != userID {
		return nil, apperr.New(apperr.ErrForbidden, "Only the host can play the next song")
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.limits.AdvanceLockTTL)
	unlock, err := s.locker.Lock(lockCtx, "advance:"+spaceID)
	cancel()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrConflict, err, "Playback is already advancing, try again")
	}
	defer unlock()

	var (
		next     *database.RankedStream
		previous string
	)
	err = s.db.InTx(ctx, func(tx *database.DB) error {
		next, previous = nil, ""

		if _, err := tx.LockSpace(ctx, spaceID); err != nil {
			return err
		}

		now := s.now()
		current, err := tx.GetCurrentStream(ctx, spaceID)
		if err != nil {
			return err
		}
		if current != nil {
			previous = current.StreamID
			if err := tx.MarkPlayed(ctx, current.StreamID, now); err != nil {
				return err
			}
		}

		top, err := tx.TopUnplayed(ctx, spaceID)
		if err != nil {
			return err
		}
		if top == nil {
			return tx.DeleteCurrentStream(ctx, spaceID)
		}

		if err := tx.UpsertCurrentStream(ctx, &models.CurrentStream{
			SpaceID:   spaceID,
			StreamID:  top.ID,
			UserID:    userID,
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		// a concurrent removal may have taken it; that reads as an empty queue
		exists, err := tx.StreamExists(ctx, top.ID)
		if err != nil {
			return err
		}
		if !exists {
			return tx.DeleteCurrentStream(ctx, spaceID)
		}

		next = top
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := events.AdvancedPayload{Previous: previous}
	if next != nil {
		payload.StreamID = next.ID
		payload.Title = next.Title
	}
	events.Emit(ctx, s.events, s.log, events.EventTypeStreamAdvanced, spaceID, userID, payload)

	if next == nil {
		s.log.Info("queue exhausted", zap.String("space_id", spaceID))
		return nil, nil
	}

	view := newStreamView(*next)
	view.HaveUpvoted = false
	return &view, nil
}
