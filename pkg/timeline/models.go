package timeline

import "encoding/json"

// The HomeTimeline GraphQL response is deeply nested and the upstream schema
// shifts without notice, so entry item content stays raw until each entry is
// decoded individually. A malformed entry then only skips itself, never the
// whole page.

type timelineResponse struct {
	Data struct {
		Home struct {
			HomeTimelineURT struct {
				Instructions []timelineInstruction `json:"instructions"`
				Cursor       string                `json:"cursor"`
			} `json:"home_timeline_urt"`
		} `json:"home"`
	} `json:"data"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
}

type timelineEntry struct {
	EntryID string       `json:"entryId"`
	Content entryContent `json:"content"`
}

type entryContent struct {
	ItemContent    json.RawMessage `json:"itemContent"`
	Operation      *operationObj   `json:"operation"`
	Cursor         *cursorObj      `json:"cursor"`
	TimelineModule *moduleObj      `json:"timelineModule"`
}

type operationObj struct {
	Cursor *cursorObj `json:"cursor"`
}

// cursorObj carries the pagination token under either of two field names
// depending on the entry shape.
type cursorObj struct {
	Value  string `json:"value"`
	Cursor string `json:"cursor"`
}

func (c *cursorObj) token() string {
	if c == nil {
		return ""
	}
	if c.Value != "" {
		return c.Value
	}
	return c.Cursor
}

type moduleObj struct {
	Cursor string `json:"cursor"`
}

type itemContent struct {
	ItemType     string `json:"itemType"`
	TweetResults struct {
		Result tweetResult `json:"result"`
	} `json:"tweet_results"`
}

type tweetResult struct {
	RestID string `json:"rest_id"`
	Core   struct {
		UserResults struct {
			Result userResult `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy    tweetLegacy `json:"legacy"`
	CreatedAt string      `json:"created_at"`
}

type tweetLegacy struct {
	IDStr         string `json:"id_str"`
	FullText      string `json:"full_text"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	FavoriteCount int    `json:"favorite_count"`
	ReplyCount    int    `json:"reply_count"`
	RetweetCount  int    `json:"retweet_count"`
	Entities      struct {
		UserMentions []struct {
			ScreenName string `json:"screen_name"`
		} `json:"user_mentions"`
	} `json:"entities"`
}

// userResult resolves the author between the two response shapes the API
// serves: the long-standing legacy block and the newer core block.
type userResult struct {
	Legacy struct {
		ScreenName           string `json:"screen_name"`
		Name                 string `json:"name"`
		ProfileImageURLHTTPS string `json:"profile_image_url_https"`
	} `json:"legacy"`
	Core *struct {
		ScreenName string `json:"screen_name"`
		Name       string `json:"name"`
	} `json:"core"`
}

func (u *userResult) screenName() string {
	if u.Legacy.ScreenName != "" {
		return u.Legacy.ScreenName
	}
	if u.Core != nil {
		return u.Core.ScreenName
	}
	return ""
}

func (u *userResult) displayName() string {
	if u.Legacy.Name != "" {
		return u.Legacy.Name
	}
	if u.Core != nil {
		return u.Core.Name
	}
	return ""
}
