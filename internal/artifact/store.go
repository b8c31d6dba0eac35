package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
)

// ErrNotFound indicates the requested artifact is absent from the store.
var ErrNotFound = errors.New("artifact not found")

const compressedSuffix = ".zst"

// Store is a content-addressed artifact store on the local filesystem.
// Artifacts are keyed by the SHA-256 digest of their uncompressed payload and
// sharded by hash prefix. Writes go through a temp file and rename, so a
// stored artifact is either complete or absent. The store is safe for
// concurrent use.
type Store struct {
	root     string
	compress bool
}

// Option configures a Store.
type Option func(*Store)

// WithCompression enables zstd compression of stored payloads. Digests always
// cover the uncompressed bytes.
func WithCompression(enabled bool) Option {
	return func(s *Store) {
		s.compress = enabled
	}
}

// NewStore creates an artifact store rooted at dir.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("artifact store dir is empty")
	}
	s := &Store{root: dir}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return s, nil
}

// Put stores the contents of r and returns the digest and uncompressed size.
// Storing a payload that already exists is a no-op returning the same digest.
func (s *Store) Put(r io.Reader) (digest.Digest, int64, error) {
	tmp, err := os.CreateTemp(s.root, "incoming-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		_ = os.Remove(tmpPath)
	}

	digester := digest.Canonical.Digester()
	var sink io.Writer = tmp
	var enc *zstd.Encoder
	if s.compress {
		enc, err = zstd.NewWriter(tmp)
		if err != nil {
			cleanup()
			return "", 0, fmt.Errorf("init zstd writer: %w", err)
		}
		sink = enc
	}

	size, err := io.Copy(io.MultiWriter(sink, digester.Hash()), r)
	if err != nil {
		cleanup()
		return "", 0, fmt.Errorf("write artifact payload: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			cleanup()
			return "", 0, fmt.Errorf("flush zstd writer: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("close temp artifact: %w", err)
	}

	dgst := digester.Digest()
	target := s.blobPath(dgst)
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(tmpPath)
		return dgst, size, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("create artifact shard: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("commit artifact: %w", err)
	}
	return dgst, size, nil
}

// PutBytes stores an in-memory payload.
func (s *Store) PutBytes(data []byte) (digest.Digest, int64, error) {
	return s.Put(strings.NewReader(string(data)))
}

// PutFile stores the contents of an existing file.
func (s *Store) PutFile(path string) (digest.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()
	return s.Put(f)
}

// Open returns a reader over the uncompressed payload of the given artifact.
func (s *Store) Open(dgst digest.Digest) (io.ReadCloser, error) {
	if err := dgst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid digest %q: %w", dgst, err)
	}
	f, err := os.Open(s.blobPath(dgst))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dgst)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	if !s.compress {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("init zstd reader: %w", err)
	}
	return &decompressReader{dec: dec, file: f}, nil
}

// ReadBytes loads a whole artifact payload into memory. Intended for small
// data artifacts (segment lists, edit plans, metadata), not media payloads.
func (s *Store) ReadBytes(dgst digest.Digest) ([]byte, error) {
	rc, err := s.Open(dgst)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Exists reports whether the artifact is present.
func (s *Store) Exists(dgst digest.Digest) bool {
	_, err := os.Stat(s.blobPath(dgst))
	return err == nil
}

// Materialize copies an artifact's uncompressed payload to path, creating
// parent directories as needed. Stages that hand paths to external tools use
// this to turn a fingerprint back into a file.
func (s *Store) Materialize(dgst digest.Digest, path string) error {
	rc, err := s.Open(dgst)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create target file: %w", err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("copy artifact payload: %w", err)
	}
	return out.Close()
}

// Verify rehashes the stored payload and compares it to the digest the
// artifact is addressed by. A missing artifact returns ErrNotFound; a payload
// that no longer matches returns a digest mismatch error.
func (s *Store) Verify(dgst digest.Digest) error {
	rc, err := s.Open(dgst)
	if err != nil {
		return err
	}
	defer rc.Close()

	verifier := dgst.Verifier()
	if _, err := io.Copy(verifier, rc); err != nil {
		return fmt.Errorf("rehash artifact: %w", err)
	}
	if !verifier.Verified() {
		return fmt.Errorf("artifact %s: payload does not match fingerprint", dgst)
	}
	return nil
}

// Path returns the on-disk location backing the artifact. The file holds the
// compressed payload when compression is enabled.
func (s *Store) Path(dgst digest.Digest) string {
	return s.blobPath(dgst)
}

func (s *Store) blobPath(dgst digest.Digest) string {
	encoded := dgst.Encoded()
	name := encoded
	if s.compress {
		name += compressedSuffix
	}
	return filepath.Join(s.root, dgst.Algorithm().String(), encoded[:2], name)
}

type decompressReader struct {
	dec  *zstd.Decoder
	file *os.File
}

func (r *decompressReader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *decompressReader) Close() error {
	r.dec.Close()
	return r.file.Close()
}
