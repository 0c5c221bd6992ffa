package http

import (
	"context"
	"log/slog"

	"github.com/example/group-availability/internal/logging"
)

type contextKey string

const (
	roomIDContextKey          contextKey = "room_id"
	participantNameContextKey contextKey = "participant_name"
)

// ContextWithLogger attaches the request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithRoomID injects the room identifier resolved from the request path.
func ContextWithRoomID(ctx context.Context, roomID string) context.Context {
	return context.WithValue(ctx, roomIDContextKey, roomID)
}

// RoomIDFromContext extracts a room identifier previously associated with the context.
func RoomIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(roomIDContextKey).(string)
	return id, ok
}

// ContextWithParticipantName injects the unescaped participant name from the request path.
func ContextWithParticipantName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, participantNameContextKey, name)
}

// ParticipantNameFromContext extracts a participant name previously associated with the context.
func ParticipantNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(participantNameContextKey).(string)
	return name, ok
}
