package timeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"membitnode/pkg/logger"
	"membitnode/pkg/models"
)

// PostURLBase is the canonical post URL prefix.
const PostURLBase = "https://x.com"

// createdAtLayout is the timestamp format tweets carry, e.g.
// "Wed Aug 27 09:15:04 +0000 2025".
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// ExtractItems converts one raw page into normalized timeline items. Every
// TimelineAddEntries instruction is walked; entries that fail to decode or
// lack a handle, identifier or non-empty content are skipped with a log
// line, never aborting the page.
func ExtractItems(page *timelineResponse, log logger.Logger) []*models.TimelineItem {
	var out []*models.TimelineItem
	if page == nil {
		return out
	}

	for _, ins := range page.Data.Home.HomeTimelineURT.Instructions {
		if ins.Type != "TimelineAddEntries" {
			continue
		}
		for _, entry := range ins.Entries {
			item, err := extractEntry(&entry)
			if err != nil {
				log.DebugWithFields("skipping timeline entry", map[string]interface{}{
					"entry_id": entry.EntryID,
					"reason":   err.Error(),
				})
				continue
			}
			if item != nil {
				out = append(out, item)
			}
		}
	}

	log.DebugWithFields("parsed timeline page", map[string]interface{}{
		"items": len(out),
	})
	return out
}

// extractEntry returns (nil, nil) for entries that are simply not tweets,
// and an error for tweet entries that cannot be normalized.
func extractEntry(entry *timelineEntry) (*models.TimelineItem, error) {
	if entry.Content.ItemContent == nil {
		return nil, nil
	}

	var ic itemContent
	if err := json.Unmarshal(entry.Content.ItemContent, &ic); err != nil {
		return nil, fmt.Errorf("malformed item content: %w", err)
	}
	if ic.ItemType != "TimelineTweet" {
		return nil, nil
	}

	tweet := ic.TweetResults.Result
	user := tweet.Core.UserResults.Result

	handle := user.screenName()
	if handle == "" {
		return nil, fmt.Errorf("no resolvable author handle")
	}

	id := tweet.RestID
	if id == "" {
		id = tweet.Legacy.IDStr
	}
	if id == "" {
		return nil, fmt.Errorf("no stable post identifier")
	}

	content := tweet.Legacy.FullText
	if content == "" {
		content = tweet.Legacy.Text
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty content")
	}

	item := &models.TimelineItem{
		TweetID: id,
		URL:     fmt.Sprintf("%s/%s/status/%s", PostURLBase, handle, id),
		Author: models.Author{
			Name:         user.displayName(),
			Handle:       "@" + handle,
			ProfileImage: user.Legacy.ProfileImageURLHTTPS,
		},
		Timestamp: parseCreatedAt(tweet.Legacy.CreatedAt, tweet.CreatedAt),
		Content:   content,
		Likes:     tweet.Legacy.FavoriteCount,
		Retweets:  tweet.Legacy.RetweetCount,
		Replies:   tweet.Legacy.ReplyCount,
	}
	for _, m := range tweet.Legacy.Entities.UserMentions {
		if m.ScreenName != "" {
			item.Mentioned = append(item.Mentioned, "@"+m.ScreenName)
		}
	}
	return item, nil
}

func parseCreatedAt(candidates ...string) time.Time {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		if ts, err := time.Parse(createdAtLayout, s); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

// cursorStrategy extracts a pagination token from a response, returning ""
// when its shape is absent. Strategies are tried in a fixed order instead of
// one nested conditional walk.
type cursorStrategy func(*timelineResponse) string

var cursorStrategies = []cursorStrategy{
	operationCursor,
	contentCursor,
	moduleCursor,
	topLevelCursor,
}

// ExtractCursor finds the next-page token, trying each known response shape
// in order. An empty result means the feed is exhausted.
func ExtractCursor(page *timelineResponse) string {
	if page == nil {
		return ""
	}
	for _, strategy := range cursorStrategies {
		if token := strategy(page); token != "" {
			return token
		}
	}
	return ""
}

func operationCursor(page *timelineResponse) string {
	for _, ins := range page.Data.Home.HomeTimelineURT.Instructions {
		for _, e := range ins.Entries {
			if e.Content.Operation != nil {
				if token := e.Content.Operation.Cursor.token(); token != "" {
					return token
				}
			}
		}
	}
	return ""
}

func contentCursor(page *timelineResponse) string {
	for _, ins := range page.Data.Home.HomeTimelineURT.Instructions {
		for _, e := range ins.Entries {
			if token := e.Content.Cursor.token(); token != "" {
				return token
			}
		}
	}
	return ""
}

func moduleCursor(page *timelineResponse) string {
	for _, ins := range page.Data.Home.HomeTimelineURT.Instructions {
		for _, e := range ins.Entries {
			if e.Content.TimelineModule != nil && e.Content.TimelineModule.Cursor != "" {
				return e.Content.TimelineModule.Cursor
			}
		}
	}
	return ""
}

func topLevelCursor(page *timelineResponse) string {
	return page.Data.Home.HomeTimelineURT.Cursor
}
