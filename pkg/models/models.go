package models

import "time"

// Author identifies the writer of a timeline post as submitted to the
// rewards API. ProfileImage starts as the upstream avatar URL and is
// rewritten to the content-addressed public URL before submission.
type Author struct {
	Name         string `json:"name"`
	Handle       string `json:"handle"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// TimelineItem is one normalized post extracted from a timeline page.
// Immutable once produced by the extractor, except for the author's
// profile image which the uploader resolves in place.
type TimelineItem struct {
	TweetID   string    `json:"-"`
	URL       string    `json:"url"`
	Author    Author    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Retweets  int       `json:"retweets"`
	Replies   int       `json:"replies"`
	Mentioned []string  `json:"mentioned,omitempty"`
}

// NodeStatus is the observational connection state of a node.
type NodeStatus string

const (
	StatusIdle      NodeStatus = "Idle"
	StatusConnected NodeStatus = "Connected"
	StatusError     NodeStatus = "Error"
)

// Snapshot is the read-only view of a node the dashboard renders. Nodes own
// their state exclusively; the presentation layer only ever sees copies.
type Snapshot struct {
	ID                   int
	Handle               string
	UserID               string
	TotalPoints          float64
	EstimatedEpochPoints float64
	EligiblePosts        int
	EpochID              int64
	NextEpochCountdown   string
	NextScrollCountdown  string
	Status               NodeStatus
	IPAddress            string
	ProxyDesc            string
	Logs                 []string
}
