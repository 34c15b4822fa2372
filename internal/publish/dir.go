package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qivr/analytics-etl/internal/domain"
)

// DirStore writes objects under a local directory, laid out exactly as the
// bucket would be. The bucket name is ignored.
type DirStore struct {
	root string
}

func NewDirStore(root string) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	return &DirStore{root: abs}, nil
}

func (s *DirStore) Put(ctx context.Context, in domain.PutObjectInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(s.root, filepath.FromSlash(in.Key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	// Write then rename so a reader never sees a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(in.Body); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(dst), nil
}
