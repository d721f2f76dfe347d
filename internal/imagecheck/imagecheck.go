// Package imagecheck validates image files before they are accepted for
// moderation. It checks size, decodability and format; it does not look at
// image content.
package imagecheck

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes is the largest file Validate accepts.
const DefaultMaxBytes int64 = 10 * 1024 * 1024

var (
	// ErrUnreadable is returned when the image cannot be stat'ed or read.
	ErrUnreadable = errors.New("image file unreadable")
	// ErrNotRegular marks paths that name a directory, device, pipe or socket.
	ErrNotRegular = errors.New("not a regular file")
)

// allowedFormats are decoder names as reported by image.Decode.
var allowedFormats = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

// Info is the metadata of a decoded image.
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
}

// Validation is the outcome of Validate. Info is set only when Valid.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
	Info   *Info  `json:"info,omitempty"`
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxBytes overrides DefaultMaxBytes. Non-positive values are ignored.
func WithMaxBytes(n int64) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxBytes = n
		}
	}
}

// Validator checks uploaded images and image files on the local filesystem.
type Validator struct {
	maxBytes int64
}

// NewValidator creates a Validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{maxBytes: DefaultMaxBytes}
	for _, o := range opts {
		o(v)
	}
	return v
}

// MaxBytes returns the configured size limit.
func (v *Validator) MaxBytes() int64 { return v.maxBytes }

// Validate checks the regular file at path. Rejections are reported in the
// returned Validation; I/O failures and non-regular files produce an error.
func (v *Validator) Validate(path string) (*Validation, error) {
	f, fi, err := openRegular(path)
	if err != nil {
		return nil, fmt.Errorf("Validate: %w", err)
	}
	defer f.Close()

	if fi.Size() > v.maxBytes {
		return &Validation{Reason: "File too large"}, nil
	}
	return v.ValidateReader(f)
}

// ValidateReader checks an image read from r, such as an upload. At most
// MaxBytes+1 bytes are read; anything longer is rejected as too large.
func (v *Validator) ValidateReader(r io.Reader) (*Validation, error) {
	data, err := io.ReadAll(io.LimitReader(r, v.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("ValidateReader: %w: %w", ErrUnreadable, err)
	}
	if int64(len(data)) > v.maxBytes {
		return &Validation{Reason: "File too large"}, nil
	}

	info, err := decode(data)
	if err != nil {
		return &Validation{Reason: "Invalid image: " + err.Error()}, nil
	}
	if !allowedFormats[info.Format] {
		return &Validation{Reason: "Unsupported format"}, nil
	}
	return &Validation{Valid: true, Reason: "Valid image", Info: info}, nil
}

// Info returns the metadata of the regular file at path regardless of size
// limit or format allow-list. Only the image header is read.
func (v *Validator) Info(path string) (*Info, error) {
	f, fi, err := openRegular(path)
	if err != nil {
		return nil, fmt.Errorf("Info: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("Info: %w", err)
	}
	return &Info{Width: cfg.Width, Height: cfg.Height, Format: format, Size: fi.Size()}, nil
}

// openRegular opens path only if it is a regular file. The mode is checked
// before opening, since opening a FIFO blocks, and again on the open handle.
func openRegular(path string) (*os.File, os.FileInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%w: %w: %s", ErrUnreadable, ErrNotRegular, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	fi, err = f.Stat()
	if err == nil && !fi.Mode().IsRegular() {
		err = fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	return f, fi, nil
}

func decode(data []byte) (*Info, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Info{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: format,
		Size:   int64(len(data)),
	}, nil
}
