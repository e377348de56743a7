package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"membitnode/pkg/errors"
	"membitnode/pkg/logger"
)

const (
	// DefaultBearerToken is the public web-app bearer token every timeline
	// request carries; per-account auth rides in the csrf token and cookie.
	DefaultBearerToken = "AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

	// HomeTimelineQueryID pins the GraphQL operation version.
	HomeTimelineQueryID = "i-osUr1ggVtNkzSgVkUdrA"

	defaultEndpoint = "https://x.com/i/api/graphql/" + HomeTimelineQueryID + "/HomeTimeline"

	// PageSize is the item count requested per page.
	PageSize = 40
)

// Credentials authenticates timeline requests for one account.
type Credentials struct {
	CSRF   string
	Cookie string
}

// Client issues HomeTimeline GraphQL requests.
type Client struct {
	httpClient *http.Client
	endpoint   string
	creds      Credentials
	logger     logger.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithEndpoint overrides the GraphQL endpoint, used by tests.
func WithEndpoint(u string) ClientOption {
	return func(c *Client) { c.endpoint = u }
}

// WithTransport routes timeline traffic through the given transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// NewClient creates a timeline client for one account.
func NewClient(creds Credentials, log logger.Logger, opts ...ClientOption) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   defaultEndpoint,
		creds:      creds,
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// graphqlRequest is the {variables, features, queryId} POST body the
// endpoint expects.
type graphqlRequest struct {
	Variables graphqlVariables `json:"variables"`
	Features  map[string]bool  `json:"features"`
	QueryID   string           `json:"queryId"`
}

type graphqlVariables struct {
	Count                  int      `json:"count"`
	Cursor                 *string  `json:"cursor"`
	IncludePromotedContent bool     `json:"includePromotedContent"`
	LatestControlAvailable bool     `json:"latestControlAvailable"`
	WithCommunity          bool     `json:"withCommunity"`
	SeenTweetIDs           []string `json:"seenTweetIds"`
}

// FetchPage requests one timeline page. cursor may be empty for the first
// page; seenIDs is the recently-seen exclusion hint, not a correctness
// filter.
func (c *Client) FetchPage(ctx context.Context, cursor string, seenIDs []string) (*timelineResponse, error) {
	vars := graphqlVariables{
		Count:                  PageSize,
		IncludePromotedContent: true,
		LatestControlAvailable: true,
		WithCommunity:          true,
		SeenTweetIDs:           seenIDs,
	}
	if seenIDs == nil {
		vars.SeenTweetIDs = []string{}
	}
	if cursor != "" {
		vars.Cursor = &cursor
	}

	body, err := json.Marshal(graphqlRequest{
		Variables: vars,
		Features:  homeTimelineFeatures,
		QueryID:   HomeTimelineQueryID,
	})
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "failed to encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, 0, "timeline request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, errors.New(errors.ErrorTypeRateLimit, resp.StatusCode, "timeline rate limit exceeded")
		}
		return nil, errors.New(errors.ErrorTypeServerError, resp.StatusCode, "timeline returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read timeline response: %v", err)
	}

	var page timelineResponse
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, errors.New(errors.ErrorTypeParsing, resp.StatusCode, "failed to parse timeline response: %v", err)
	}
	return &page, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Authorization", "Bearer "+DefaultBearerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-csrf-token", c.creds.CSRF)
	req.Header.Set("x-twitter-active-user", "yes")
	req.Header.Set("x-twitter-auth-type", "OAuth2Session")
	req.Header.Set("x-twitter-client-language", "en")
	req.Header.Set("Cookie", c.creds.Cookie)
}

// homeTimelineFeatures mirrors the web client's feature switches. The
// endpoint rejects requests missing any of them.
var homeTimelineFeatures = map[string]bool{
	"rweb_video_screen_enabled":            false,
	"payments_enabled":                     false,
	"profile_label_improvements_pcf_label_in_post_enabled":                    true,
	"rweb_tipjar_consumption_enabled":                                         true,
	"verified_phone_label_enabled":                                            false,
	"creator_subscriptions_tweet_preview_api_enabled":                         true,
	"responsive_web_graphql_timeline_navigation_enabled":                      true,
	"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
	"premium_content_api_read_enabled":                                        false,
	"communities_web_enable_tweet_community_results_fetch":                    true,
	"c9s_tweet_anatomy_moderator_badge_enabled":                               true,
	"responsive_web_grok_analyze_button_fetch_trends_enabled":                 false,
	"responsive_web_grok_analyze_post_followups_enabled":                      true,
	"responsive_web_jetfuel_frame":                                            true,
	"responsive_web_grok_share_attachment_enabled":                            true,
	"articles_preview_enabled":                                                true,
	"responsive_web_edit_tweet_api_enabled":                                   true,
	"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
	"view_counts_everywhere_api_enabled":                                      true,
	"longform_notetweets_consumption_enabled":                                 true,
	"responsive_web_twitter_article_tweet_consumption_enabled":                true,
	"tweet_awards_web_tipping_enabled":                                        false,
	"responsive_web_grok_show_grok_translated_post":                           false,
	"responsive_web_grok_analysis_button_from_backend":                        true,
	"creator_subscriptions_quote_tweet_preview_enabled":                       false,
	"freedom_of_speech_not_reach_fetch_enabled":                               true,
	"standardized_nudges_misinfo":                                             true,
	"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
	"longform_notetweets_rich_text_read_enabled":                              true,
	"longform_notetweets_inline_media_enabled":                                true,
	"responsive_web_grok_image_annotation_enabled":                            true,
	"responsive_web_grok_imagine_annotation_enabled":                          true,
	"responsive_web_grok_community_note_auto_translation_is_enabled":          false,
	"responsive_web_enhance_cards_enabled":                                    false,
}
