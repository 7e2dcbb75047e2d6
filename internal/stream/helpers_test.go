package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/internal/resolver"
	"github.com/music-spaces/pkg/database"
	"github.com/music-spaces/pkg/events"
	"github.com/music-spaces/pkg/models"
)

var testLimits = config.LimitsConfig{
	MaxSpacesPerUser: 5,
	QueueCapacity:    20,
	SubmitWindow:     2 * time.Minute,
	SelfAddQuota:     5,
	OtherAddQuota:    2,
	DuplicateWindow:  2 * time.Minute,
	AdvanceLockTTL:   5 * time.Second,
}

// fakeResolver classifies for real and invents the metadata.
type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(_ context.Context, raw string) (*resolver.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	platform, id, err := resolver.Classify(raw)
	if err != nil {
		return nil, err
	}
	return &resolver.Track{Platform: platform, ExtractedID: id, Title: "Song " + id}, nil
}

type dbSpaces struct{ db *database.DB }

func (d dbSpaces) GetSpace(ctx context.Context, id string) (*models.Space, error) {
	return d.db.GetSpaceByID(ctx, id)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fixture struct {
	db       *database.DB
	svc      *Service
	resolver *fakeResolver
	events   *recorder
	clock    time.Time
	space    *models.Space
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}, zap.NewNop(), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		db:       db,
		resolver: &fakeResolver{},
		events:   &recorder{},
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(db, dbSpaces{db}, f.resolver, NewLocalLocker(), f.events, testLimits, zap.NewNop())
	f.svc.now = func() time.Time { return f.clock }

	f.space = &models.Space{ID: uuid.NewString(), Name: "Friday", HostID: "host", JoinCode: "ABCDEFGHIJ"}
	require.NoError(t, db.CreateSpace(context.Background(), f.space))
	f.addUser(t, "host")
	return f
}

func (f *fixture) addUser(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.User{ID: id, Provider: "test", Subject: id}).Error)
}

func (f *fixture) tick(d time.Duration) { f.clock = f.clock.Add(d) }

func videoURL(n int) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=video%04d", n)
}

func (f *fixture) submit(t *testing.T, user string, n int) *StreamView {
	t.Helper()
	view, err := f.svc.Submit(context.Background(), user, SubmitInput{SpaceID: f.space.ID, URL: videoURL(n)})
	require.NoError(t, err)
	f.tick(time.Second)
	return view
}

func (f *fixture) vote(t *testing.T, streamID string, voters ...string) {
	t.Helper()
	for _, v := range voters {
		_, err := f.svc.Upvote(context.Background(), v, streamID)
		require.NoError(t, err)
	}
}
