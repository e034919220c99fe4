package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
)

// SupportedExtensions lists file extensions accepted by Load.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// IsSupported reports whether path has a supported raster extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// LoadError wraps failures while reading or decoding a raster.
type LoadError struct {
	Operation string
	Path      string
	Err       error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("raster %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("raster %s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Metadata describes a loaded raster source.
type Metadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// Load opens and decodes an image file into a grayscale Raster.
func Load(path string) (Raster, Metadata, error) {
	if path == "" {
		return Raster{}, Metadata{}, &LoadError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return Raster{}, Metadata{}, &LoadError{Operation: "load", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading a user-provided receipt path is expected
	if err != nil {
		return Raster{}, Metadata{}, &LoadError{Operation: "load", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return Raster{}, Metadata{}, &LoadError{Operation: "load", Path: path, Err: err}
	}

	r, format, err := Decode(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return Raster{}, Metadata{}, err
	}

	return r, Metadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     r.Width(),
		Height:    r.Height(),
	}, nil
}

// Decode reads an encoded image and converts it to a Raster.
func Decode(rd io.Reader) (Raster, string, error) {
	img, format, err := image.Decode(rd)
	if err != nil {
		return Raster{}, "", &LoadError{Operation: "decode", Err: err}
	}
	r, err := FromImage(img)
	if err != nil {
		return Raster{}, "", &LoadError{Operation: "decode", Err: err}
	}
	return r, format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (Raster, string, error) {
	if len(data) == 0 {
		return Raster{}, "", &LoadError{Operation: "decode", Err: errors.New("empty payload")}
	}
	return Decode(bytes.NewReader(data))
}

// Encode writes the raster as PNG.
func Encode(w io.Writer, r Raster) error {
	if r.Empty() {
		return &LoadError{Operation: "encode", Err: ErrEmptyRegion}
	}
	return imaging.Encode(w, r.Image(), imaging.PNG)
}

// EncodePNG returns the PNG encoding of the raster.
func EncodePNG(r Raster) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the raster to path; the format follows the extension.
func Save(path string, r Raster) error {
	if r.Empty() {
		return &LoadError{Operation: "save", Path: path, Err: ErrEmptyRegion}
	}
	if err := imaging.Save(r.Image(), path); err != nil {
		return &LoadError{Operation: "save", Path: path, Err: err}
	}
	return nil
}
