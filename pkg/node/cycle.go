package node

import (
	"context"

	"membitnode/pkg/membit"
	"membitnode/pkg/models"
)

// runCycle performs one timeline collection pass and submits everything new.
// A failing item never stops the batch; the cycle simply moves on to the
// next one.
func (n *Node) runCycle(ctx context.Context) {
	n.logger.Info("starting timeline collection")

	items := n.collector.Collect(ctx)
	if len(items) == 0 {
		n.logger.Info("timeline collection produced no items")
		return
	}
	n.logger.InfoWithFields("timeline collected", map[string]interface{}{
		"items": len(items),
	})

	var submitted, skipped, failed int
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !n.submitted.ShouldSubmit(item.URL) {
			skipped++
			continue
		}
		if err := n.subPacer.Wait(ctx); err != nil {
			break
		}
		if err := n.submitItem(ctx, item); err != nil {
			failed++
			n.logger.WithError(err).WarnWithFields("post submission failed", map[string]interface{}{
				"url": item.URL,
			})
			continue
		}
		submitted++
	}

	n.logger.InfoWithFields("collection cycle finished", map[string]interface{}{
		"submitted": submitted,
		"skipped":   skipped,
		"failed":    failed,
	})
}

// submitItem pushes one post and its engagement counters. The post body and
// the counters travel as separate submissions keyed by the returned post
// UUID; an engagement failure after an accepted post is logged but does not
// fail the item, since the post itself already counts.
func (n *Node) submitItem(ctx context.Context, item *models.TimelineItem) error {
	avatar := item.Author.ProfileImage
	if n.mirror != nil && avatar != "" {
		avatar = n.mirror.Mirror(ctx, avatar)
	}

	receipt, err := n.api.SubmitPost(ctx, &membit.PostPayload{
		URL: item.URL,
		Author: models.Author{
			Name:         item.Author.Name,
			Handle:       item.Author.Handle,
			ProfileImage: avatar,
		},
		Timestamp: item.Timestamp,
		Content:   item.Content,
		Mentioned: item.Mentioned,
	})
	if err != nil {
		return err
	}
	n.submitted.Record(item.URL)

	n.logger.DebugWithFields("post accepted", map[string]interface{}{
		"post_uuid":       receipt.PostUUID,
		"expected_points": receipt.ExpectedEpochPoints,
	})

	if err := n.api.SubmitEngagements(ctx, &membit.EngagementsPayload{
		PostUUID: receipt.PostUUID,
		URL:      item.URL,
		Likes:    item.Likes,
		Retweets: item.Retweets,
		Replies:  item.Replies,
	}); err != nil {
		n.logger.WithError(err).WarnWithFields("engagement submission failed", map[string]interface{}{
			"post_uuid": receipt.PostUUID,
		})
	}
	return nil
}
