// Package storage moves processed avatars out of temporary storage.
package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-userauth"
)

// DefaultAvatarPrefix is the public path segment avatars live under.
const DefaultAvatarPrefix = "avatars"

// LocalStore keeps avatars in a directory served as static files.
type LocalStore struct {
	dir    string
	prefix string
}

var _ auth.AvatarStore = (*LocalStore)(nil)

// NewLocalStore stores files in publicDir/avatars and references them as
// avatars/<file>.
func NewLocalStore(publicDir string) *LocalStore {
	return &LocalStore{
		dir:    filepath.Join(publicDir, DefaultAvatarPrefix),
		prefix: DefaultAvatarPrefix,
	}
}

// Dir returns the directory avatars are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Store moves tmpPath to the avatar directory, replacing any file with the
// same name. Moves across devices fall back to copy and delete.
func (s *LocalStore) Store(ctx context.Context, tmpPath, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		return "", goerrors.New("avatar filename is required", goerrors.CategoryBadInput)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create avatar directory")
	}

	dst := filepath.Join(s.dir, filename)

	if err := os.Rename(tmpPath, dst); err != nil {
		if cerr := copyFile(tmpPath, dst); cerr != nil {
			return "", goerrors.Wrap(cerr, goerrors.CategoryInternal, "failed to move avatar").
				WithMetadata(map[string]any{"src": tmpPath, "dst": dst, "rename_error": err.Error()})
		}
		if rerr := os.Remove(tmpPath); rerr != nil && !os.IsNotExist(rerr) {
			return "", goerrors.Wrap(rerr, goerrors.CategoryInternal, "failed to remove temporary avatar")
		}
	}

	return path.Join(s.prefix, filename), nil
}

// Remove deletes the file behind a reference returned by Store. A missing
// file is not an error.
func (s *LocalStore) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filename := path.Base(ref)
	if filename == "." || filename == "/" {
		return goerrors.New("avatar reference is required", goerrors.CategoryBadInput)
	}

	dst := filepath.Join(s.dir, filename)
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove avatar").
			WithMetadata(map[string]any{"path": dst})
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
