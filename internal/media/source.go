package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"clipforge/internal/services"
)

// SourceProvider fetches source media by reference. Implementations wrap
// platform download clients; the pipeline only depends on this contract.
// Fetch failures should be tagged services.ErrNotFound for unknown references
// and services.ErrTransient for rate limiting or network trouble.
type SourceProvider interface {
	Fetch(ctx context.Context, reference string) (io.ReadCloser, Descriptor, error)
}

// Prober extracts a media descriptor from a local file.
type Prober interface {
	Probe(ctx context.Context, path string) (Descriptor, error)
}

// FileProvider serves local files as pipeline sources, probing each one for
// its descriptor. It is the default provider for file:// and bare-path
// references.
type FileProvider struct {
	prober Prober
}

// NewFileProvider constructs a FileProvider backed by the given prober.
func NewFileProvider(prober Prober) *FileProvider {
	return &FileProvider{prober: prober}
}

// Fetch opens the referenced file and probes its media properties.
func (p *FileProvider) Fetch(ctx context.Context, reference string) (io.ReadCloser, Descriptor, error) {
	path := strings.TrimPrefix(strings.TrimSpace(reference), "file://")
	if path == "" {
		return nil, Descriptor{}, services.Wrap(services.ErrValidation, "acquisition", "fetch", "empty source reference", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Descriptor{}, services.Wrap(services.ErrNotFound, "acquisition", "fetch", "source file does not exist: "+path, err)
		}
		return nil, Descriptor{}, services.Wrap(services.ErrTransient, "acquisition", "fetch", "stat source file", err)
	}

	desc := Descriptor{SizeBytes: info.Size()}
	if p.prober != nil {
		probed, probeErr := p.prober.Probe(ctx, path)
		if probeErr != nil {
			return nil, Descriptor{}, probeErr
		}
		probed.SizeBytes = info.Size()
		desc = probed
	}
	if desc.Title == "" {
		base := filepath.Base(path)
		desc.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Descriptor{}, services.Wrap(services.ErrTransient, "acquisition", "fetch", "open source file", err)
	}
	return f, desc, nil
}
