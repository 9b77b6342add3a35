package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry flushes telemetry buffers before process exit. When textfile is set the
// metrics registry is persisted there first; then logs are synced.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, textfile string) error {
	if textfile != "" {
		if err := WriteTextfile(textfile); err != nil {
			return err
		}
	}
	if logger != nil {
		if err := logger.Sync(); err != nil {
			return fmt.Errorf("flush logs: %w", err)
		}
	}
	return nil
}
