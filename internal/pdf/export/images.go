package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"

	"github.com/a3tai/mcp-pdf-filler/internal/pdf/annotation"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/document"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-filler/internal/pdf/geometry"
)

// drawSignatures embeds each signature image and draws it into its page.
// Only context cancellation aborts the loop.
func (r *run) drawSignatures(signatures []annotation.SignatureAnnotation) error {
	for _, sig := range signatures {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		page := r.doc.Page(sig.Page)
		if page == nil {
			r.skip(pdferrors.ErrorTypeInvalidAnnotation, sig.ID, sig.Page,
				fmt.Errorf("page %d does not exist (document has %d)", sig.Page, r.doc.PageCount()))
			continue
		}
		if sig.Rect.Width <= 0 || sig.Rect.Height <= 0 {
			r.skip(pdferrors.ErrorTypeInvalidAnnotation, sig.ID, sig.Page, fmt.Errorf("signature has an empty rectangle"))
			continue
		}

		img, err := decodeSignature(sig)
		if err != nil {
			r.skip(pdferrors.ErrorTypeImageDecodeFailure, sig.ID, sig.Page, err)
			continue
		}
		img = downscale(img, r.engine.opts.MaxSignaturePx)

		err = document.Guard(func() error {
			return r.placeImage(page, img, sig.Rect, sig.RenderSnapshot)
		})
		if err != nil {
			r.skip(pdferrors.ErrorTypeImageDecodeFailure, sig.ID, sig.Page, err)
			continue
		}
		r.res.SignaturesApplied++
	}
	return nil
}

func decodeSignature(sig annotation.SignatureAnnotation) (image.Image, error) {
	if len(sig.ImageBytes) == 0 {
		return nil, fmt.Errorf("signature has no image data")
	}
	mediaType := sig.MediaType
	if mediaType == "" {
		mediaType = annotation.SniffMediaType(sig.ImageBytes)
	}

	var img image.Image
	var err error
	switch mediaType {
	case annotation.MediaTypePNG:
		img, err = png.Decode(bytes.NewReader(sig.ImageBytes))
	case annotation.MediaTypeJPEG:
		img, err = jpeg.Decode(bytes.NewReader(sig.ImageBytes))
	default:
		return nil, fmt.Errorf("unsupported image type %q", mediaType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", mediaType, err)
	}
	return img, nil
}

// downscale bounds the longest edge of img to maxPx, keeping proportions.
func downscale(img image.Image, maxPx int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if maxPx <= 0 || longest <= maxPx {
		return img
	}
	nw := max(1, w*maxPx/longest)
	nh := max(1, h*maxPx/longest)
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// imageStreams splits img into 8-bit RGB samples and, when any pixel is not
// opaque, DeviceGray alpha samples.
func imageStreams(img image.Image) (rgb, alpha []byte) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rgb = make([]byte, 0, w*h*3)
	alphaBuf := make([]byte, 0, w*h)
	translucent := false
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color(img, x, y)
			rgb = append(rgb, c[0], c[1], c[2])
			alphaBuf = append(alphaBuf, c[3])
			if c[3] != 0xff {
				translucent = true
			}
		}
	}
	if translucent {
		alpha = alphaBuf
	}
	return rgb, alpha
}

// color returns straight (non-premultiplied) 8-bit RGBA.
func color(img image.Image, x, y int) [4]byte {
	r, g, b, a := img.At(x, y).RGBA()
	if a == 0 {
		return [4]byte{0xff, 0xff, 0xff, 0}
	}
	if a != 0xffff {
		r = r * 0xffff / a
		g = g * 0xffff / a
		b = b * 0xffff / a
	}
	return [4]byte{byte(r >> 8), byte(g >> 8), byte(b >> 8), byte(a >> 8)}
}

func (r *run) imageXObject(img image.Image) (*types.IndirectRef, error) {
	b := img.Bounds()
	rgb, alpha := imageStreams(img)
	dict := types.Dict{
		"Type":             types.Name("XObject"),
		"Subtype":          types.Name("Image"),
		"Width":            types.Integer(b.Dx()),
		"Height":           types.Integer(b.Dy()),
		"ColorSpace":       types.Name("DeviceRGB"),
		"BitsPerComponent": types.Integer(8),
	}
	if alpha != nil {
		mask, err := r.doc.NewStream(types.Dict{
			"Type":             types.Name("XObject"),
			"Subtype":          types.Name("Image"),
			"Width":            types.Integer(b.Dx()),
			"Height":           types.Integer(b.Dy()),
			"ColorSpace":       types.Name("DeviceGray"),
			"BitsPerComponent": types.Integer(8),
		}, alpha)
		if err != nil {
			return nil, err
		}
		dict["SMask"] = *mask
	}
	return r.doc.NewStream(dict, rgb)
}

// placeImage adds img as an image XObject and queues the operators that
// paint it into the signature rectangle.
func (r *run) placeImage(page *document.Page, img image.Image, rect geometry.Rect, snap geometry.RenderSnapshot) error {
	ref, err := r.imageXObject(img)
	if err != nil {
		return err
	}
	name, err := r.doc.AddResource(page, "XObject", "Im", *ref)
	if err != nil {
		return err
	}
	pdfRect := page.ToPageSpace(geometry.ToPdfSpace(rect, snap, page.Geometry))
	r.draw(page, fmt.Sprintf("q\n%s 0 0 %s %s %s cm\n/%s Do\nQ\n",
		num(pdfRect.Width), num(pdfRect.Height), num(pdfRect.X), num(pdfRect.Y), name))
	return nil
}
