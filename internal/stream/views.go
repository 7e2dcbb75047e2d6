package stream

import (
	"github.com/music-spaces/pkg/database"
	"github.com/music-spaces/pkg/models"
)

// StreamView is a queue entry decorated for one viewer.
type StreamView struct {
	models.Stream
	Upvotes     int64 `json:"upvotes"`
	HaveUpvoted bool  `json:"haveUpvoted"`
}

func newStreamView(r database.RankedStream) StreamView {
	return StreamView{
		Stream:      r.Stream,
		Upvotes:     r.UpvoteCount,
		HaveUpvoted: r.HaveUpvoted(),
	}
}

func newStreamViews(items []database.RankedStream) []StreamView {
	views := make([]StreamView, 0, len(items))
	for _, item := range items {
		views = append(views, newStreamView(item))
	}
	return views
}

// ActiveStream is the playing pointer with the track it points at.
type ActiveStream struct {
	SpaceID  string         `json:"spaceId"`
	StreamID string         `json:"streamId"`
	UserID   string         `json:"userId"`
	Stream   *models.Stream `json:"stream"`
}

// QueueState is what a polling client renders.
type QueueState struct {
	Streams      []StreamView  `json:"streams"`
	ActiveStream *ActiveStream `json:"activeStream"`
	HostID       string        `json:"hostId"`
	IsHost       bool          `json:"isHost"`
	SpaceName    string        `json:"spaceName"`
}
