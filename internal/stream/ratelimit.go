package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/pkg/apperr"
)

// SubmissionStore answers the two questions the limiter asks. It is the
// transaction the gated insert runs in.
type SubmissionStore interface {
	HasDuplicate(ctx context.Context, spaceID, creatorID, url string, since time.Time) (bool, error)
	CountSubmissions(ctx context.Context, spaceID, addedBy, creatorID string, since time.Time) (int64, error)
}

// Submission is one attempt to add a track. SubmitterID adds it, CreatorID
// is credited with it.
type Submission struct {
	SpaceID     string
	SubmitterID string
	CreatorID   string
	URL         string
	At          time.Time
}

func (s Submission) selfAdd() bool { return s.SubmitterID == s.CreatorID }

type Limiter struct {
	window     time.Duration
	dupWindow  time.Duration
	selfQuota  int
	otherQuota int
}

func NewLimiter(limits config.LimitsConfig) *Limiter {
	return &Limiter{
		window:     limits.SubmitWindow,
		dupWindow:  limits.DuplicateWindow,
		selfQuota:  limits.SelfAddQuota,
		otherQuota: limits.OtherAddQuota,
	}
}

// CheckAndRecord runs record only if sub is neither a duplicate nor over
// quota. Call it inside the transaction that record writes to.
func (l *Limiter) CheckAndRecord(ctx context.Context, store SubmissionStore, sub Submission, record func() error) error {
	dup, err := store.HasDuplicate(ctx, sub.SpaceID, sub.CreatorID, sub.URL, sub.At.Add(-l.dupWindow))
	if err != nil {
		return err
	}
	if dup {
		return apperr.New(apperr.ErrDuplicate, "This song was already added recently")
	}

	quota := l.otherQuota
	if sub.selfAdd() {
		quota = l.selfQuota
	}

	recent, err := store.CountSubmissions(ctx, sub.SpaceID, sub.SubmitterID, sub.CreatorID, sub.At.Add(-l.window))
	if err != nil {
		return err
	}
	if recent >= int64(quota) {
		return apperr.New(apperr.ErrRateLimited, "You can only add %d songs every %s", quota, humanize(l.window))
	}

	return record()
}

func humanize(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
