package eventsource

import "context"

// Command represents an intent to change an aggregate; unlike Event, a
// Command has no guaranteed persistence or ordering contract of its own.
type Command interface {
	// AggregateID returns the id of the aggregate the command targets.
	AggregateID() string
}

// CommandModel provides a default Command implementation for embedding.
type CommandModel struct {
	ID string `json:"id"`
}

// AggregateID implements Command.
func (m CommandModel) AggregateID() string { return m.ID }

// CommandHandler is implemented by aggregates that accept commands through
// Repository.Apply rather than direct TriggerEvent calls.
type CommandHandler interface {
	Apply(ctx context.Context, command Command) ([]Event, error)
}
