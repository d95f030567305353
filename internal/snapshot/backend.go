package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/blockcheck/internal/s3client"
)

// FormatVersion is the version written into every snapshot file.
const FormatVersion = 1

// fileExt is appended to the suite name to form the snapshot file name.
const fileExt = ".snap.yaml"

// Backend persists the snapshots of one suite as a single document.
// Load returns an empty map, not an error, when nothing was recorded yet.
type Backend interface {
	Load(ctx context.Context, suite string) (map[string]string, error)
	Save(ctx context.Context, suite string, snapshots map[string]string) error
	// Delete removes the suite. Deleting a suite that was never saved is not an error.
	Delete(ctx context.Context, suite string) error
	// Suites lists the stored suite names, sorted.
	Suites(ctx context.Context) ([]string, error)
	Location(suite string) string
}

type fileDoc struct {
	Version   int               `yaml:"version"`
	Snapshots map[string]string `yaml:"snapshots"`
}

// Encode renders snapshots as YAML. Keys are sorted so files diff cleanly.
func Encode(snapshots map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fileDoc{Version: FormatVersion, Snapshots: snapshots}); err != nil {
		return nil, fmt.Errorf("encode snapshots: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode snapshots: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a snapshot file. An empty file holds no snapshots.
func Decode(data []byte) (map[string]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]string{}, nil
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshots: %w", err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("decode snapshots: unsupported version %d", doc.Version)
	}
	if doc.Snapshots == nil {
		doc.Snapshots = map[string]string{}
	}
	return doc.Snapshots, nil
}

// FileBackend stores each suite in <Dir>/<suite>.snap.yaml.
type FileBackend struct {
	Dir string
}

// NewFileBackend returns a backend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{Dir: dir}
}

func (b *FileBackend) Location(suite string) string {
	return filepath.Join(b.Dir, suite+fileExt)
}

func (b *FileBackend) Load(_ context.Context, suite string) (map[string]string, error) {
	data, err := os.ReadFile(b.Location(suite))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.Location(suite), err)
	}
	return Decode(data)
}

// Save writes through a temp file and rename so an interrupted run never
// leaves a truncated snapshot file behind.
func (b *FileBackend) Save(_ context.Context, suite string, snapshots map[string]string) error {
	data, err := Encode(snapshots)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(b.Dir, suite+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.Location(suite)); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context, suite string) error {
	if err := os.Remove(b.Location(suite)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot file: %w", err)
	}
	return nil
}

func (b *FileBackend) Suites(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}
	var suites []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fileExt) {
			suites = append(suites, strings.TrimSuffix(e.Name(), fileExt))
		}
	}
	return suites, nil
}

// S3Backend stores each suite as the object <Prefix>/<suite>.snap.yaml.
type S3Backend struct {
	Client *s3client.Client
	Prefix string
}

// NewS3Backend returns a backend writing under prefix in the client's bucket.
func NewS3Backend(client *s3client.Client, prefix string) *S3Backend {
	return &S3Backend{Client: client, Prefix: strings.Trim(prefix, "/")}
}

func (b *S3Backend) key(suite string) string {
	return path.Join(b.Prefix, suite+fileExt)
}

func (b *S3Backend) Location(suite string) string {
	return "s3://" + b.Client.BucketName() + "/" + b.key(suite)
}

func (b *S3Backend) Load(ctx context.Context, suite string) (map[string]string, error) {
	data, err := b.Client.GetObject(ctx, b.key(suite))
	if errors.Is(err, s3client.ErrObjectNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (b *S3Backend) Save(ctx context.Context, suite string, snapshots map[string]string) error {
	data, err := Encode(snapshots)
	if err != nil {
		return err
	}
	return b.Client.PutObject(ctx, b.key(suite), data, "application/yaml")
}

func (b *S3Backend) Delete(ctx context.Context, suite string) error {
	return b.Client.DeleteObject(ctx, b.key(suite))
}

// Suites lists the suites stored directly under the backend prefix.
func (b *S3Backend) Suites(ctx context.Context) ([]string, error) {
	prefix := b.Prefix
	if prefix != "" {
		prefix += "/"
	}
	keys, err := b.Client.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var suites []string
	for _, k := range keys {
		name := strings.TrimPrefix(k, prefix)
		if strings.HasSuffix(name, fileExt) && !strings.Contains(name, "/") {
			suites = append(suites, strings.TrimSuffix(name, fileExt))
		}
	}
	slices.Sort(suites)
	return suites, nil
}
