package utils

import (
	"context"
)

type CustomContext struct {
	AppSource string
	RunId     string
	MessageId string
}

type customContextKeyType string

const customContextKey customContextKeyType = "CUSTOM_CONTEXT"

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey, customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

// WithRunId returns a copy of ctx tagged with the run identifier.
func WithRunId(ctx context.Context, runId string) context.Context {
	current := *GetContext(ctx)
	current.RunId = runId
	return WithCustomContext(ctx, &current)
}

// WithMessageId returns a copy of ctx tagged with the message being processed.
func WithMessageId(ctx context.Context, messageId string) context.Context {
	current := *GetContext(ctx)
	current.MessageId = messageId
	return WithCustomContext(ctx, &current)
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetRunIdFromContext(ctx context.Context) string {
	return GetContext(ctx).RunId
}

func GetMessageIdFromContext(ctx context.Context) string {
	return GetContext(ctx).MessageId
}
