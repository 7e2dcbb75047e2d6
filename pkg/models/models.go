package models

import (
	"time"
)

type PlatformType string

const (
	PlatformYoutube PlatformType = "Youtube"
	PlatformSpotify PlatformType = "Spotify"
)

type User struct {
	ID        string    `json:"id" gorm:"size:36;primaryKey"`
	Provider  string    `json:"provider" gorm:"size:32;not null;uniqueIndex:idx_user_identity"`
	Subject   string    `json:"-" gorm:"size:191;not null;uniqueIndex:idx_user_identity"`
	Email     string    `json:"email" gorm:"size:191"`
	Name      string    `json:"name" gorm:"size:191"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Space is a host-owned listening room. JoinCode is what non-owners use to find it.
type Space struct {
	ID        string    `json:"id" gorm:"size:36;primaryKey"`
	Name      string    `json:"name" gorm:"size:50;not null"`
	HostID    string    `json:"hostId" gorm:"size:36;not null;index"`
	JoinCode  string    `json:"sharableId" gorm:"size:10;not null;uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stream is a queue entry. AddedBy is the submitter, CreatorID the user the
// submission is attributed to.
type Stream struct {
	ID          string       `json:"id" gorm:"size:36;primaryKey"`
	SpaceID     string       `json:"spaceId" gorm:"size:36;not null;index:idx_stream_space_played"`
	Type        PlatformType `json:"type" gorm:"size:16;not null"`
	ExtractedID string       `json:"extractedId" gorm:"size:64;not null"`
	Title       string       `json:"title" gorm:"size:255"`
	SmallImg    string       `json:"smallImg" gorm:"size:512"`
	BigImg      string       `json:"bigImg" gorm:"size:512"`
	URL         string       `json:"url" gorm:"size:512;not null;index:idx_stream_creator_url"`
	AddedBy     string       `json:"addedBy" gorm:"size:36;not null;index"`
	CreatorID   string       `json:"userId" gorm:"size:36;not null;index:idx_stream_creator_url"`
	Played      bool         `json:"played" gorm:"not null;index:idx_stream_space_played"`
	PlayedAt    *time.Time   `json:"playedTs"`
	CreatedAt   time.Time    `json:"createAt" gorm:"index"`
}

// Upvote is a membership fact: the row existing is the vote.
type Upvote struct {
	UserID    string    `json:"userId" gorm:"size:36;primaryKey"`
	StreamID  string    `json:"streamId" gorm:"size:36;primaryKey;index"`
	CreatedAt time.Time `json:"createdAt"`
}

// CurrentStream is the per-space playing pointer.
type CurrentStream struct {
	SpaceID   string    `json:"spaceId" gorm:"size:36;primaryKey"`
	StreamID  string    `json:"streamId" gorm:"size:36;not null"`
	UserID    string    `json:"userId" gorm:"size:36;not null"`
	UpdatedAt time.Time `json:"updatedAt"`
}
