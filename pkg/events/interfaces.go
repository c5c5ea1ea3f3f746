package events

import "context"

// Publisher sends call events to a downstream sink (SQS, SNS, HTTP, etc).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt CallEvent) error
}
