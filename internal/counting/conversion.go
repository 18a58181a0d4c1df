package counting

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

const defaultMimeType = "image/jpeg"

// stripDataURI removes a "data:<mime>;base64," prefix from an encoded image.
// It returns the bare base64 text and the MIME type named by the prefix.
func stripDataURI(payload string) (string, string) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "data:") {
		return payload, defaultMimeType
	}

	comma := strings.Index(payload, ",")
	if comma == -1 {
		return strings.TrimPrefix(payload, "data:"), defaultMimeType
	}

	header := strings.TrimPrefix(payload[:comma], "data:")
	mimeType, _, _ := strings.Cut(header, ";")
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	return payload[comma+1:], mimeType
}

// decodePayload turns an encoded image payload into raw bytes and its MIME type
func decodePayload(payload string) ([]byte, string, error) {
	encoded, mimeType := stripDataURI(payload)
	if encoded == "" {
		return nil, "", ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some browsers emit unpadded output
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, "", fmt.Errorf("%w: decoding base64: %w", ErrInvalidImage, err)
		}
	}
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	return data, mimeType, nil
}

// pdfToImage converts a PDF to a PNG image
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Only the first page is counted
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// imageToPNG converts any supported image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Phone cameras often produce HEIC, which the standard image package cannot decode
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") {
				return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData decodes the payload and converts it to PNG when needed.
// PNG and JPEG captures pass through untouched; everything else is re-encoded as PNG.
func prepareImageData(payload string) ([]byte, string, error) {
	data, mimeType, err := decodePayload(payload)
	if err != nil {
		return nil, "", err
	}

	switch {
	case mimeType == "application/pdf":
		pngData, err := pdfToImage(data)
		if err != nil {
			return nil, "", fmt.Errorf("%w: converting PDF to image: %w", ErrInvalidImage, err)
		}
		return pngData, "image/png", nil
	case isHEICFormat(data) || isHEICMimeType(mimeType), mimeType == "image/gif":
		pngData, err := imageToPNG(data, mimeType)
		if err != nil {
			return nil, "", fmt.Errorf("%w: converting image to PNG: %w", ErrInvalidImage, err)
		}
		return pngData, "image/png", nil
	}

	return data, mimeType, nil
}

// imageFormat returns the bare format suffix of a MIME type ("image/png" -> "png")
func imageFormat(mimeType string) string {
	_, format, ok := strings.Cut(mimeType, "/")
	if !ok || format == "" {
		return "jpeg"
	}
	return format
}
