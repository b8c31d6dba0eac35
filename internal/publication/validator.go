package publication

import (
	"fmt"
	"os"
	"strings"

	"clipforge/internal/config"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

const bytesPerMiB = 1024 * 1024

// Validator performs the platform preflight: duration ceiling, file size
// limit, and minimum resolution. Every violation is reported, not just the
// first, so a rejected clip can be diagnosed in one pass.
type Validator struct {
	cfg config.Publication
}

func NewValidator(cfg config.Publication) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks the rendered clip at path against platform constraints.
// Violations are non-retriable: the clip will never pass without re-running
// earlier stages under different configuration.
func (v *Validator) Validate(path string, desc media.Descriptor) error {
	var violations []string

	if v.cfg.MaxDurationSeconds > 0 && desc.DurationSeconds > v.cfg.MaxDurationSeconds {
		violations = append(violations, fmt.Sprintf("duration %.1fs exceeds platform maximum %.1fs",
			desc.DurationSeconds, v.cfg.MaxDurationSeconds))
	}
	if desc.Width < v.cfg.MinWidth || desc.Height < v.cfg.MinHeight {
		violations = append(violations, fmt.Sprintf("resolution %dx%d below platform minimum %dx%d",
			desc.Width, desc.Height, v.cfg.MinWidth, v.cfg.MinHeight))
	}

	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "publish", "preflight", "clip file missing", err)
	}
	if limit := int64(v.cfg.MaxFileSizeMiB) * bytesPerMiB; v.cfg.MaxFileSizeMiB > 0 && info.Size() > limit {
		violations = append(violations, fmt.Sprintf("file size %d bytes exceeds platform maximum %d MiB",
			info.Size(), v.cfg.MaxFileSizeMiB))
	}

	if len(violations) > 0 {
		return services.Wrap(services.ErrValidation, "publish", "preflight", strings.Join(violations, "; "), nil)
	}
	return nil
}
