package auth

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultAvatarSize is the width and height avatars are normalized to.
const DefaultAvatarSize = 250

// AvatarUpload is a file received from a client and parked in temporary storage.
type AvatarUpload struct {
	Path     string
	Filename string
}

// ImagingResizer resizes images with disintegration/imaging.
type ImagingResizer struct {
	Filter imaging.ResampleFilter
}

var _ ImageResizer = ImagingResizer{}

// NewImagingResizer returns a resizer using the Lanczos filter.
func NewImagingResizer() ImagingResizer {
	return ImagingResizer{Filter: imaging.Lanczos}
}

// Resize overwrites path with the image scaled to exactly width x height.
// The aspect ratio is not preserved.
func (r ImagingResizer) Resize(ctx context.Context, path string, width, height int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if width <= 0 || height <= 0 {
		return goerrors.New("avatar dimensions must be positive", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"width": width, "height": height})
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode image")
	}

	filter := r.Filter
	if filter.Support == 0 && filter.Kernel == nil {
		filter = imaging.Lanczos
	}

	dst := imaging.Resize(img, width, height, filter)

	// uploads without a known extension are rewritten as PNG
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		format = imaging.PNG
	}

	out, err := os.Create(path)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open image for writing")
	}

	if err := imaging.Encode(out, dst, format); err != nil {
		out.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write image")
	}

	if err := out.Close(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write image")
	}

	return nil
}

// AvatarProcessor normalizes an uploaded avatar and hands it to an AvatarStore.
type AvatarProcessor struct {
	resizer ImageResizer
	store   AvatarStore
	size    int
	logger  Logger
}

// NewAvatarProcessor wires a resizer and store. A non positive size
// falls back to DefaultAvatarSize.
func NewAvatarProcessor(resizer ImageResizer, store AvatarStore, size int) *AvatarProcessor {
	if resizer == nil {
		resizer = NewImagingResizer()
	}
	if size <= 0 {
		size = DefaultAvatarSize
	}
	return &AvatarProcessor{
		resizer: resizer,
		store:   store,
		size:    size,
		logger:  defLogger{},
	}
}

func (p *AvatarProcessor) WithLogger(logger Logger) *AvatarProcessor {
	p.logger = normalizeLogger(logger)
	return p
}

// Size returns the edge length avatars are resized to.
func (p *AvatarProcessor) Size() int {
	return p.size
}

// Process resizes the upload in place and stores it, returning the public
// reference. The temporary file is removed when processing fails.
func (p *AvatarProcessor) Process(ctx context.Context, userID uuid.UUID, upload AvatarUpload) (string, error) {
	if p.store == nil {
		return "", goerrors.New("avatar store not configured", goerrors.CategoryInternal)
	}

	filename := AvatarFilename(userID, upload.Filename)

	if err := p.resizer.Resize(ctx, upload.Path, p.size, p.size); err != nil {
		p.discard(upload.Path)
		return "", err
	}

	ref, err := p.store.Store(ctx, upload.Path, filename)
	if err != nil {
		p.discard(upload.Path)
		return "", err
	}

	p.logger.Debug("avatar stored", "user_id", userID.String(), "ref", ref)

	return ref, nil
}

// Remove deletes a stored avatar. Failures are logged and returned.
func (p *AvatarProcessor) Remove(ctx context.Context, ref string) error {
	if p.store == nil || ref == "" {
		return nil
	}
	if err := p.store.Remove(ctx, ref); err != nil {
		p.logger.Warn("failed to remove stored avatar", "ref", ref, "error", err)
		return err
	}
	return nil
}

func (p *AvatarProcessor) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("failed to remove temporary avatar", "path", path, "error", err)
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AvatarFilename prefixes the original file name with the user id so two
// users uploading "avatar.png" do not overwrite each other. Names without
// an image extension get ".png", the format Resize writes them in.
func AvatarFilename(userID uuid.UUID, original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, ".")
	if base == "" || base == "_" {
		base = "avatar"
	}
	if _, err := imaging.FormatFromFilename(base); err != nil {
		base += ".png"
	}
	return userID.String() + "_" + base
}
