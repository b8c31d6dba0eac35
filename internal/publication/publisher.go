package publication

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/optimization"
	"clipforge/internal/services"
)

// Client submits a validated clip to a platform and returns the platform's
// identifier for the published item.
type Client interface {
	Platform() string
	Submit(ctx context.Context, path string, meta optimization.MetadataRecord) (string, error)
}

// Receipt records a successful hand-off.
type Receipt struct {
	Platform    string    `json:"platform"`
	PlatformID  string    `json:"platform_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Publisher runs the preflight and hands the clip to the platform client.
type Publisher struct {
	validator *Validator
	client    Client
	logger    *slog.Logger
	now       func() time.Time
}

func NewPublisher(cfg config.Publication, client Client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		validator: NewValidator(cfg),
		client:    client,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish validates the clip and submits it. Preflight failures are
// non-retriable; submission failures are transient unless the client already
// classified them.
func (p *Publisher) Publish(ctx context.Context, path string, desc media.Descriptor, meta optimization.MetadataRecord) (Receipt, error) {
	if err := p.validator.Validate(path, desc); err != nil {
		return Receipt{}, err
	}

	platformID, err := p.client.Submit(ctx, path, meta)
	if err != nil {
		if services.Retriable(err) || services.Fatal(err) || errors.Is(err, services.ErrValidation) {
			return Receipt{}, err
		}
		return Receipt{}, services.Wrap(services.ErrTransient, "publish", "submit", "platform hand-off failed", err)
	}

	receipt := Receipt{
		Platform:    p.client.Platform(),
		PlatformID:  platformID,
		SubmittedAt: p.now().UTC(),
	}
	p.logger.Info("clip published",
		logging.String("platform", receipt.Platform),
		logging.String("platform_id", receipt.PlatformID))
	return receipt, nil
}

// NullClient accepts every submission without contacting any service. It is
// the default client for dry runs and local development.
type NullClient struct {
	Name string
	IDFn func() string
}

func (c *NullClient) Platform() string {
	if c.Name == "" {
		return "null"
	}
	return c.Name
}

func (c *NullClient) Submit(_ context.Context, _ string, _ optimization.MetadataRecord) (string, error) {
	if c.IDFn != nil {
		return c.IDFn(), nil
	}
	return "local-" + time.Now().UTC().Format("20060102T150405"), nil
}
