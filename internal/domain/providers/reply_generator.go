package providers

import "context"

// ReplyContext carries everything the draft generator needs to write a
// reply in the business's voice.
type ReplyContext struct {
	BusinessName    string
	Tone            string
	BusinessContext string
	ReviewerName    string
	Rating          *int
	ReviewBody      string
}

// ReplyGenerator is the AI draft-generation collaborator.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, rc ReplyContext) (string, error)
}
