// Package texture reads texture facts from image files on disk.
//
// Only image headers are decoded (image.DecodeConfig); pixel data is never read.
// PNG files are additionally scanned up to the first IDAT chunk for tRNS.
package texture

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF header decoder
	_ "image/jpeg" // register JPEG header decoder
	_ "image/png"  // register PNG header decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/solatis/texpolicy/internal/rules"
	"github.com/solatis/texpolicy/internal/types"
)

// Extensions lists the file extensions Probe understands.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif"}

// Supported reports whether path has a probeable image extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Header holds what DecodeConfig reports about an image.
type Header struct {
	Width    int
	Height   int
	Format   string // registered decoder name: "png", "jpeg", "gif"
	HasAlpha bool
}

// ReadHeader decodes the image header at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Header{}, fmt.Errorf("decode header %s: %w", path, err)
	}

	hasAlpha := modelHasAlpha(cfg.ColorModel)
	// DecodeConfig returns before tRNS, so the model alone misses PNG transparency
	if format == "png" && !hasAlpha {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return Header{}, err
		}
		_, paletted := cfg.ColorModel.(color.Palette)
		if hasAlpha, err = pngHasTransparency(f, paletted); err != nil {
			return Header{}, fmt.Errorf("scan png chunks %s: %w", path, err)
		}
	}

	return Header{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   format,
		HasAlpha: hasAlpha,
	}, nil
}

const pngSignature = "\x89PNG\r\n\x1a\n"

// pngHasTransparency walks PNG chunks until the first IDAT looking for tRNS.
// For paletted images the chunk counts only if some entry is below full
// opacity; for grayscale and truecolor images it names a transparent color key.
func pngHasTransparency(r io.Reader, paletted bool) (bool, error) {
	br := bufio.NewReader(r)

	var sig [8]byte
	if _, err := io.ReadFull(br, sig[:]); err != nil {
		return false, err
	}
	if string(sig[:]) != pngSignature {
		return false, errors.New("not a PNG file")
	}

	var chunk [8]byte // length, type
	for {
		if _, err := io.ReadFull(br, chunk[:]); err != nil {
			return false, err
		}
		length := binary.BigEndian.Uint32(chunk[:4])

		switch string(chunk[4:]) {
		case "tRNS":
			if !paletted {
				return true, nil
			}
			if length > 256 {
				return false, fmt.Errorf("tRNS chunk has %d entries", length)
			}
			alpha := make([]byte, length)
			if _, err := io.ReadFull(br, alpha); err != nil {
				return false, err
			}
			for _, a := range alpha {
				if a != 0xff {
					return true, nil
				}
			}
			return false, nil
		case "IDAT", "IEND":
			return false, nil
		}

		// skip data and CRC
		if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
			return false, err
		}
	}
}

// modelHasAlpha reports whether a color model can carry transparency.
// Paletted models count when a palette entry is translucent.
func modelHasAlpha(m color.Model) bool {
	switch m {
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model,
		color.AlphaModel, color.Alpha16Model:
		return true
	}
	if p, ok := m.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// Probe builds TextureFacts for the image at path on platform.
// Name is the file name without extension; AssetPath is path with '/' separators.
// CurrentFormatName is the source container format, since a file on disk has no
// host compression format yet.
func Probe(path, platform string) (types.TextureFacts, error) {
	hdr, err := ReadHeader(path)
	if err != nil {
		return types.TextureFacts{}, err
	}

	base := filepath.Base(path)
	return types.TextureFacts{
		Name:              strings.TrimSuffix(base, filepath.Ext(base)),
		AssetPath:         filepath.ToSlash(path),
		PlatformName:      platform,
		HasAlpha:          hdr.HasAlpha,
		NativeWidth:       hdr.Width,
		NativeHeight:      hdr.Height,
		CurrentFormatName: strings.ToUpper(hdr.Format),
	}, nil
}

// FileSizeProvider reads native dimensions from image headers.
// Asset paths are resolved relative to Root when Root is set.
type FileSizeProvider struct {
	Root string
}

var _ rules.NativeSizeProvider = FileSizeProvider{}

// NativeSize implements rules.NativeSizeProvider.
func (p FileSizeProvider) NativeSize(ctx context.Context, asset rules.AssetContext) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	path := asset.SourcePath()
	if path == "" {
		return 0, 0, fmt.Errorf("asset has no source path")
	}
	path = filepath.FromSlash(path)
	if p.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(p.Root, path)
	}

	hdr, err := ReadHeader(path)
	if err != nil {
		return 0, 0, err
	}
	return hdr.Width, hdr.Height, nil
}
