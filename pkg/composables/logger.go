package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/211-Connect/silobuster-resources/pkg/constants"
	"github.com/211-Connect/silobuster-resources/pkg/logging"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger stored in ctx or a discarding one.
func UseLogger(ctx context.Context) *logrus.Entry {
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return logging.Nop()
	}
}
