// Package analyzer orchestrates a single accessibility scan: validate the
// input, render and audit the page with the configured strategy, then
// normalize the findings into a ScanResult.
package analyzer

import (
	"context"
	"time"

	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/utils"
)

// Analyzer runs scans.
type Analyzer interface {
	// Scan runs one scan end to end. Errors are always *model.ScanError.
	Scan(ctx context.Context, raw string) (*model.ScanResult, error)

	// Strategy reports which upstream mechanism this analyzer uses.
	Strategy() model.StrategyKind
}

// RemoteAuditor fetches findings from a third-party audit service.
type RemoteAuditor interface {
	Audit(ctx context.Context, url string) (*model.LighthouseFindings, error)
}

// Recorder receives one call per finished scan. kind is empty on success.
type Recorder interface {
	ScanFinished(strategy model.StrategyKind, kind model.ErrorKind, elapsed time.Duration)
}

// Config controls orchestration.
type Config struct {
	Strategy model.StrategyKind `mapstructure:"strategy"`

	// Timeout bounds the whole scan. Navigation has its own, shorter bound
	// in the render options.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxConcurrent caps simultaneous scans, and with them browser
	// processes. Zero means unlimited.
	MaxConcurrent int64 `mapstructure:"max_concurrent"`

	// InspectDocument logs title and language of each rendered page.
	InspectDocument bool `mapstructure:"inspect_document"`

	URL utils.ValidateOptions `mapstructure:"url"`
}
