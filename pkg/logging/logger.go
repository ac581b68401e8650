package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/flexscale/flexscale/pkg/contextutils"
)

var defaultLogger *slog.Logger

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	defaultLogger = slog.New(handler)
}

// Convert args to slog attributes (key-value pairs)
func argsToAttrs(args ...any) []slog.Attr {
	var attrs []slog.Attr
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			key := fmt.Sprint(args[i])
			value := args[i+1]
			attrs = append(attrs, slog.Any(key, value))
		}
	}
	return attrs
}

// Structured logging functions with context
func Info(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelInfo, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelWarn, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelError, msg, args...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelDebug, msg, args...)
}

func log(ctx context.Context, level slog.Level, msg string, args ...any) {
	attrs := getContextualAttrs(ctx)
	allAttrs := make([]slog.Attr, 0, len(attrs)+len(args)/2)
	allAttrs = append(allAttrs, attrs...)
	allAttrs = append(allAttrs, argsToAttrs(args...)...)
	defaultLogger.LogAttrs(ctx, level, msg, allAttrs...)
}

// Printf-style logging functions
func Infof(ctx context.Context, format string, args ...any) {
	defaultLogger.LogAttrs(ctx, slog.LevelInfo, fmt.Sprintf(format, args...), getContextualAttrs(ctx)...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	defaultLogger.LogAttrs(ctx, slog.LevelWarn, fmt.Sprintf(format, args...), getContextualAttrs(ctx)...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	defaultLogger.LogAttrs(ctx, slog.LevelError, fmt.Sprintf(format, args...), getContextualAttrs(ctx)...)
}

func Debugf(ctx context.Context, format string, args ...any) {
	defaultLogger.LogAttrs(ctx, slog.LevelDebug, fmt.Sprintf(format, args...), getContextualAttrs(ctx)...)
}

func Fatal(ctx context.Context, msg string, args ...any) {
	Error(ctx, msg, args...)
	os.Exit(1)
}

func Fatalf(ctx context.Context, format string, args ...any) {
	Errorf(ctx, format, args...)
	os.Exit(1)
}

// Configuration functions
func SetLevel(level slog.Level) {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	defaultLogger = slog.New(handler)
}

func SetTextOutput() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	defaultLogger = slog.New(handler)
}

func getContextualAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for k, v := range contextutils.GetAttributes(ctx) {
		attrs = append(attrs, slog.String(k, v))
	}
	return attrs
}
