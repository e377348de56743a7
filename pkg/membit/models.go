package membit

import (
	"time"

	"membitnode/pkg/models"
)

// Whoami is the rewards API's view of the authenticated account.
type Whoami struct {
	ID            string  `json:"id"`
	TwitterHandle string  `json:"twitter_handle"`
	Point         float64 `json:"point"`
}

// NextEpoch carries the current scoring interval metadata.
type NextEpoch struct {
	EpochID              int64     `json:"epoch_id"`
	EstimatedEndTime     time.Time `json:"estimated_end_time"`
	EligiblePostsCount   int       `json:"eligible_posts_count"`
	EstimatedEpochPoints float64   `json:"estimated_epoch_points"`
	AccumulatedPoints    float64   `json:"accumulated_points"`
}

// UploadSlotRequest asks the API for a signed upload slot for an image.
type UploadSlotRequest struct {
	OriginalURL       string `json:"original_url"`
	ChecksumSHA256Hex string `json:"checksum_sha256_hex"`
	ContentType       string `json:"content_type"`
}

// UploadSlot is the API's answer: either a signed PUT target or, when
// UploadURL is empty, confirmation that the content is already hosted at
// PublicURL.
type UploadSlot struct {
	UploadURL      string `json:"upload_url"`
	PublicURL      string `json:"public_url"`
	ChecksumSHA256 string `json:"x_amz_checksum_sha256"`
}

// PostPayload is the post-submission body. Engagement counters travel
// separately in EngagementsPayload.
type PostPayload struct {
	URL       string        `json:"url"`
	Author    models.Author `json:"author"`
	Timestamp time.Time     `json:"timestamp"`
	Content   string        `json:"content"`
	Mentioned []string      `json:"mentioned,omitempty"`
}

// SubmitReceipt identifies an accepted post.
type SubmitReceipt struct {
	PostUUID            string  `json:"post_uuid"`
	ExpectedEpochPoints float64 `json:"expected_epoch_points"`
}

// EngagementsPayload ties engagement counters to an accepted post.
type EngagementsPayload struct {
	PostUUID string `json:"post_uuid"`
	URL      string `json:"url"`
	Likes    int    `json:"likes"`
	Retweets int    `json:"retweets"`
	Replies  int    `json:"replies"`
}
