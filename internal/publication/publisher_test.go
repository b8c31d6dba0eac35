package publication

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/media"
	"clipforge/internal/optimization"
	"clipforge/internal/services"
)

func testPublication() config.Publication {
	return config.Publication{
		Platform:           "tiktok",
		MaxDurationSeconds: 600,
		MaxFileSizeMiB:     500,
		MinWidth:           540,
		MinHeight:          540,
	}
}

func writeClip(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return path
}

func goodClip() media.Descriptor {
	return media.Descriptor{DurationSeconds: 58, Width: 1080, Height: 1920}
}

type fakeClient struct {
	id   string
	err  error
	meta optimization.MetadataRecord
}

func (f *fakeClient) Platform() string { return "fake" }

func (f *fakeClient) Submit(_ context.Context, _ string, meta optimization.MetadataRecord) (string, error) {
	f.meta = meta
	return f.id, f.err
}

func TestPublishReturnsReceipt(t *testing.T) {
	client := &fakeClient{id: "vid-123"}
	pub := NewPublisher(testPublication(), client, nil)

	meta := optimization.MetadataRecord{Title: "Demo"}
	receipt, err := pub.Publish(context.Background(), writeClip(t, 1024), goodClip(), meta)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if receipt.Platform != "fake" || receipt.PlatformID != "vid-123" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if receipt.SubmittedAt.IsZero() {
		t.Fatal("expected submission timestamp")
	}
	if client.meta.Title != "Demo" {
		t.Fatalf("metadata not forwarded, got %+v", client.meta)
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	v := NewValidator(config.Publication{
		MaxDurationSeconds: 10,
		MaxFileSizeMiB:     1,
		MinWidth:           540,
		MinHeight:          540,
	})

	path := writeClip(t, 2*1024*1024)
	err := v.Validate(path, media.Descriptor{DurationSeconds: 20, Width: 320, Height: 240})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	msg := services.Message(err)
	for _, want := range []string{"duration", "resolution", "file size"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q violation in %q", want, msg)
		}
	}
}

func TestValidateMissingFile(t *testing.T) {
	v := NewValidator(testPublication())

	err := v.Validate(filepath.Join(t.TempDir(), "absent.mp4"), goodClip())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPublishRejectionIsNotRetriable(t *testing.T) {
	pub := NewPublisher(testPublication(), &fakeClient{id: "x"}, nil)

	long := goodClip()
	long.DurationSeconds = 1200
	_, err := pub.Publish(context.Background(), writeClip(t, 1024), long, optimization.MetadataRecord{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.Retriable(err) {
		t.Fatal("platform rejection must not be retried")
	}
}

func TestPublishHandOffFailureIsRetriable(t *testing.T) {
	client := &fakeClient{err: errors.New("connection reset")}
	pub := NewPublisher(testPublication(), client, nil)

	_, err := pub.Publish(context.Background(), writeClip(t, 1024), goodClip(), optimization.MetadataRecord{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.Retriable(err) {
		t.Fatalf("hand-off failure should be retriable, got %v", err)
	}
}

func TestPublishKeepsClientClassification(t *testing.T) {
	client := &fakeClient{err: services.Wrap(services.ErrTimeout, "publish", "submit", "upload timed out", nil)}
	pub := NewPublisher(testPublication(), client, nil)

	_, err := pub.Publish(context.Background(), writeClip(t, 1024), goodClip(), optimization.MetadataRecord{})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout classification preserved, got %v", err)
	}
}
