package pagemodules

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ModuleInserted(ctx context.Context, module *PageModule) error {
	return nil
}

func (n *NoopEventSink) ModuleRemoved(ctx context.Context, contentID uuid.UUID, removed []uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) ModulesReordered(ctx context.Context, contentID uuid.UUID, placements []Placement) error {
	return nil
}

func (n *NoopEventSink) ModuleUpdated(ctx context.Context, module *PageModule) error {
	return nil
}

func (n *NoopEventSink) ModuleDataUpserted(ctx context.Context, data *ModuleData) error {
	return nil
}

func (n *NoopEventSink) ReorderFailed(ctx context.Context, contentID uuid.UUID, cause error) error {
	return nil
}

// LoggingEventSink writes one structured log line per domain event
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink logging to logger, or to the
// default logger when nil
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) ModuleInserted(ctx context.Context, module *PageModule) error {
	l.logger.InfoContext(ctx, "Module inserted",
		"content_id", module.ContentID, "module_id", module.ID, "module_type_id", module.ModuleTypeID, "order", module.Order)
	return nil
}

func (l *LoggingEventSink) ModuleRemoved(ctx context.Context, contentID uuid.UUID, removed []uuid.UUID) error {
	l.logger.InfoContext(ctx, "Module removed", "content_id", contentID, "module_id", removed[0], "deleted", len(removed))
	return nil
}

func (l *LoggingEventSink) ModulesReordered(ctx context.Context, contentID uuid.UUID, placements []Placement) error {
	l.logger.InfoContext(ctx, "Modules reordered", "content_id", contentID, "changed", len(placements))
	return nil
}

func (l *LoggingEventSink) ModuleUpdated(ctx context.Context, module *PageModule) error {
	l.logger.InfoContext(ctx, "Module updated", "content_id", module.ContentID, "module_id", module.ID)
	return nil
}

func (l *LoggingEventSink) ModuleDataUpserted(ctx context.Context, data *ModuleData) error {
	l.logger.InfoContext(ctx, "Module data upserted", "module_id", data.PageModuleID, "data_key", data.DataKey)
	return nil
}

func (l *LoggingEventSink) ReorderFailed(ctx context.Context, contentID uuid.UUID, cause error) error {
	l.logger.WarnContext(ctx, "Reorder failed", "content_id", contentID, "error", cause)
	return nil
}
