// Package space manages host-owned listening rooms.
package space

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/database"
	"github.com/music-spaces/pkg/events"
	"github.com/music-spaces/pkg/models"
)

const (
	joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	joinCodeLength   = 10
	joinCodeAttempts = 5
	listLimit        = 10
)

// Cache holds space rows between requests. Get reports a miss as (nil, nil).
type Cache interface {
	Get(ctx context.Context, id string) (*models.Space, error)
	Set(ctx context.Context, space *models.Space) error
	Delete(ctx context.Context, id string) error
}

type Service struct {
	db        *database.DB
	cache     Cache
	events    events.Publisher
	maxSpaces int
	log       *zap.Logger
}

func NewService(db *database.DB, cache Cache, publisher events.Publisher, maxSpaces int, log *zap.Logger) *Service {
	return &Service{
		db:        db,
		cache:     cache,
		events:    publisher,
		maxSpaces: maxSpaces,
		log:       log,
	}
}

// CreateSpace enforces the per-host limit under a lock on the host's user row.
func (s *Service) CreateSpace(ctx context.Context, hostID, name string) (*models.Space, error) {
	space := &models.Space{
		ID:     uuid.NewString(),
		Name:   name,
		HostID: hostID,
	}

	err := s.db.InTx(ctx, func(tx *database.DB) error {
		if _, err := tx.LockUser(ctx, hostID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.New(apperr.ErrForbidden, "Unknown user")
			}
			return err
		}

		owned, err := tx.CountSpacesByHost(ctx, hostID)
		if err != nil {
			return err
		}
		if owned >= int64(s.maxSpaces) {
			return apperr.New(apperr.ErrLimitReached, "You can only create %d spaces", s.maxSpaces)
		}

		code, err := s.uniqueJoinCode(ctx, tx)
		if err != nil {
			return err
		}
		space.JoinCode = code

		if err := tx.CreateSpace(ctx, space); err != nil {
			return fmt.Errorf("failed to create space: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cacheSpace(ctx, space)
	events.Emit(ctx, s.events, s.log, events.EventTypeSpaceCreated, space.ID, hostID, nil)
	return space, nil
}

func (s *Service) uniqueJoinCode(ctx context.Context, tx *database.DB) (string, error) {
	for i := 0; i < joinCodeAttempts; i++ {
		code, err := generateJoinCode()
		if err != nil {
			return "", err
		}
		taken, err := tx.JoinCodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free join code after %d attempts", joinCodeAttempts)
}

func generateJoinCode() (string, error) {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	code := make([]byte, joinCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate join code: %w", err)
		}
		code[i] = joinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// GetSpace reads through the cache.
func (s *Service) GetSpace(ctx context.Context, id string) (*models.Space, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn("space cache read failed", zap.String("space_id", id), zap.Error(err))
		}
		if cached != nil {
			return cached, nil
		}
	}

	space, err := s.db.GetSpaceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheSpace(ctx, space)
	return space, nil
}

func (s *Service) ListSpaces(ctx context.Context, hostID string) ([]models.Space, error) {
	return s.db.ListSpacesByHost(ctx, hostID, listLimit)
}

// DeleteSpace removes a space and everything it owns. Callers who are not
// the host get the same answer as for a missing space.
func (s *Service) DeleteSpace(ctx context.Context, id, userID string) error {
	err := s.db.InTx(ctx, func(tx *database.DB) error {
		space, err := tx.LockSpace(ctx, id)
		if err != nil {
			return err
		}
		if space.HostID != userID {
			return apperr.New(apperr.ErrNotFound, "Space not found or you are not the host")
		}
		return tx.DeleteSpace(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, id); err != nil {
			s.log.Warn("failed to evict space", zap.String("space_id", id), zap.Error(err))
		}
	}
	events.Emit(ctx, s.events, s.log, events.EventTypeSpaceDeleted, id, userID, nil)
	return nil
}

// JoinSpace resolves a share code to its space.
func (s *Service) JoinSpace(ctx context.Context, code string) (*models.Space, error) {
	space, err := s.db.GetSpaceByJoinCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cacheSpace(ctx, space)
	return space, nil
}

func (s *Service) ShareCode(ctx context.Context, id string) (string, error) {
	space, err := s.GetSpace(ctx, id)
	if err != nil {
		return "", err
	}
	return space.JoinCode, nil
}

func (s *Service) cacheSpace(ctx context.Context, space *models.Space) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, space); err != nil {
		s.log.Warn("failed to cache space", zap.String("space_id", space.ID), zap.Error(err))
	}
}
