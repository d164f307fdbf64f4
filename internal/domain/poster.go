package domain

import "context"

// Poster delivers one rendered notification into a conversation thread.
// Each chat channel provides its own implementation; the notifier picks one by
// the request's Origin field.
type Poster interface {
	Name() string
	PostThreadReply(ctx context.Context, channel, threadKey string, blocks []Block, text string) error
}
