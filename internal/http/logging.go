package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger derives the logger for one handler operation. It prefers the
// request logger installed by RequestLogger and tags the entry with the room
// and participant the router resolved from the path, so handlers only pass
// attributes of their own.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := make([]any, 0, 8+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if roomID, ok := RoomIDFromContext(ctx); ok {
		pairs = append(pairs, "room_id", roomID)
	}
	if name, ok := ParticipantNameFromContext(ctx); ok {
		pairs = append(pairs, "participant", name)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
