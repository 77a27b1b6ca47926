package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	runIDKey ctxKey = "run_id"
	envKey   ctxKey = "env"
)

// WithRunID stores the ingest run ID in the context.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromCtx extracts the ingest run ID from the context.
// Returns uuid.Nil and false if the value is missing, nil UUID, or wrong type.
func RunIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithEnv stores the target database environment name in the context.
func WithEnv(ctx context.Context, env string) context.Context {
	return context.WithValue(ctx, envKey, env)
}

// EnvFromCtx extracts the target environment name.
// Returns an empty string if absent, which callers treat as a dry run.
func EnvFromCtx(ctx context.Context) string {
	env, _ := ctx.Value(envKey).(string)
	return env
}
