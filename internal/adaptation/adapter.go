package adaptation

import (
	"context"
	"fmt"
	"log/slog"

	"clipforge/internal/config"
	"clipforge/internal/editing"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

// Renderer is the subset of the media engine the adapter drives.
type Renderer interface {
	Render(ctx context.Context, spec media.RenderSpec) error
}

// Adapter reframes an edit plan for the target aspect ratio and renders the
// final clip. Crop windows anchor on each segment's detected region of
// interest and fall back to the frame center.
type Adapter struct {
	cfg    config.Adaptation
	engine Renderer
	logger *slog.Logger
}

func NewAdapter(cfg config.Adaptation, engine Renderer, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Adapter{cfg: cfg, engine: engine, logger: logger}
}

// Adapt validates the source against the minimum resolution, derives one crop
// window per planned segment, and renders outputPath. The returned spec is
// the exact render instruction, suitable for fingerprinting.
func (a *Adapter) Adapt(ctx context.Context, inputPath, outputPath string, desc media.Descriptor, plan editing.Plan) (media.RenderSpec, error) {
	if desc.Width < a.cfg.MinSourceWidth || desc.Height < a.cfg.MinSourceHeight {
		msg := fmt.Sprintf("source %dx%d below minimum %dx%d",
			desc.Width, desc.Height, a.cfg.MinSourceWidth, a.cfg.MinSourceHeight)
		return media.RenderSpec{}, services.Wrap(services.ErrValidation, "adapt", "resolution", msg, nil)
	}
	if len(plan.Segments) == 0 {
		return media.RenderSpec{}, services.Wrap(services.ErrValidation, "adapt", "plan", "edit plan has no segments", nil)
	}

	ratioW, ratioH, err := config.ParseAspectRatio(a.cfg.AspectRatio)
	if err != nil {
		return media.RenderSpec{}, services.Wrap(services.ErrConfiguration, "adapt", "aspect", "bad aspect ratio", err)
	}

	clips := make([]media.Clip, 0, len(plan.Segments))
	for _, seg := range plan.Segments {
		clip := media.Clip{
			StartSeconds: seg.StartSeconds,
			EndSeconds:   seg.EndSeconds,
			Crop:         cropWindow(desc, ratioW, ratioH, seg.Segment.Features.Region),
		}
		if seg.Transition != nil {
			clip.FadeSeconds = seg.Transition.DurationSeconds
		}
		clips = append(clips, clip)
	}

	spec := media.RenderSpec{
		Input:  inputPath,
		Output: outputPath,
		Clips:  clips,
		Width:  a.cfg.OutputWidth,
		Height: a.cfg.OutputHeight,
		CRF:    a.cfg.CRF,
		Preset: a.cfg.Preset,
	}
	if err := a.engine.Render(ctx, spec); err != nil {
		return media.RenderSpec{}, err
	}
	a.logger.Debug("clip rendered",
		logging.Int("clips", len(clips)),
		logging.String("output", outputPath))
	return spec, nil
}

// cropWindow computes the largest crop of the source frame matching the
// target ratio, centered on the region of interest when one exists.
// Dimensions are forced even for codec compatibility.
func cropWindow(desc media.Descriptor, ratioW, ratioH int, region *media.Rect) media.Rect {
	cropH := desc.Height
	cropW := cropH * ratioW / ratioH
	if cropW > desc.Width {
		cropW = desc.Width
		cropH = cropW * ratioH / ratioW
		if cropH > desc.Height {
			cropH = desc.Height
		}
	}
	cropW -= cropW % 2
	cropH -= cropH % 2

	cx, cy := desc.Width/2, desc.Height/2
	if region != nil && !region.Empty() {
		cx, cy = region.Center()
	}

	x := clampInt(cx-cropW/2, 0, desc.Width-cropW)
	y := clampInt(cy-cropH/2, 0, desc.Height-cropH)
	return media.Rect{X: x, Y: y, Width: cropW, Height: cropH}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
