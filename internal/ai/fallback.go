package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tandara/quoteline-backend/internal/underwriting"
)

// fallbackAssessor wraps two Assessor implementations. It calls the primary
// first; if that returns an error it logs the failure and tries the secondary.
// This gives you Anthropic as the default with DeepSeek as the safety net
// (or vice versa; the choice is made in main.go).
type fallbackAssessor struct {
	primary   Assessor
	secondary Assessor
	logger    *slog.Logger
}

// NewFallbackAssessor returns an Assessor that calls primary and, on failure,
// falls back to secondary. Either argument may be nil: if primary is nil it
// goes straight to secondary; if secondary is nil and primary fails, the
// primary error is returned directly.
func NewFallbackAssessor(primary, secondary Assessor, logger *slog.Logger) Assessor {
	return &fallbackAssessor{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Assess tries the primary Assessor. If it fails and a secondary is
// configured, it logs the primary error and tries the secondary.
func (f *fallbackAssessor) Assess(ctx context.Context, app underwriting.ApplicationRecord) (string, error) {
	if f.primary != nil {
		raw, err := f.primary.Assess(ctx, app)
		if err == nil {
			return raw, nil
		}
		f.logger.Warn("ai: primary assessor failed, trying secondary",
			"error", err,
			"business", app.BusinessName,
		)
		if f.secondary == nil {
			return "", fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
	}

	return f.secondary.Assess(ctx, app)
}
