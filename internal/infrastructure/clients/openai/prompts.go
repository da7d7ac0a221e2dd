package openai

import (
	"fmt"

	"github.com/garrettjsmith/localpresence/internal/domain/providers"
)

const replyDraftSystemPrompt = `You write short owner replies to customer reviews of local businesses. Rules:
- Reply in the first person as the business owner or manager.
- 2-4 sentences. No hashtags, no emojis, no sign-off block.
- Thank the reviewer by name when a name is given.
- For 4-5 star reviews, be warm and specific; invite them back.
- For 3 stars or below, acknowledge the problem without excuses and offer to make it right offline.
- Never promise refunds, discounts, or compensation.
- Never mention that the reply was generated automatically.
Return only the reply text.`

func buildReplyDraftUserPrompt(rc providers.ReplyContext) string {
	rating := "unrated"
	if rc.Rating != nil {
		rating = fmt.Sprintf("%d stars", *rc.Rating)
	}
	reviewer := rc.ReviewerName
	if reviewer == "" {
		reviewer = "(anonymous)"
	}
	return fmt.Sprintf(
		"Business: %s\nTone: %s\nBusiness context: %s\nReviewer: %s\nRating: %s\nReview: %s\n",
		rc.BusinessName, rc.Tone, rc.BusinessContext, reviewer, rating, rc.ReviewBody,
	)
}
