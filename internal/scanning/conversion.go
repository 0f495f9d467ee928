package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// ErrUnsupportedImage is returned when an upload cannot be decoded as an image or PDF
var ErrUnsupportedImage = errors.New("unsupported image format")

const jpegQuality = 90

// receiptScanPrompt is the shared prompt used by the language model analyzers.
// The answer mirrors the prebuilt receipt field vocabulary.
const receiptScanPrompt = `You are analyzing a photo or scan of a receipt, often Japanese. Carefully read all text and extract the following fields:

- MerchantName: the store or business name
- TransactionDate: the purchase date in YYYY-MM-DD format
- TransactionTime: the purchase time in HH:MM:SS format
- MerchantAddress: the store address as printed
- MerchantPhoneNumber: the store phone number as printed
- Items: every purchased line item with Description, Quantity, Price (unit price) and TotalPrice
- Subtotal, TotalTax, Tip, Total: amounts as numbers without currency symbols

Return ONLY valid JSON in this exact format:
{
  "documents": [
    {
      "MerchantName": {"value": "Store", "confidence": 0.95},
      "TransactionDate": {"value": "2024-01-15", "confidence": 0.9},
      "Items": [
        {"Description": {"value": "Item", "confidence": 0.9}, "Quantity": {"value": 1, "confidence": 0.9}, "Price": {"value": 0.00, "confidence": 0.9}, "TotalPrice": {"value": 0.00, "confidence": 0.9}}
      ],
      "Total": {"value": 0.00, "confidence": 0.9}
    }
  ]
}

Important:
- Use one entry in "documents" per receipt in the image
- confidence is your certainty between 0 and 1
- Omit a field, or use null for its value, when you cannot find it
- Amounts and quantities must be numbers, not strings
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// pdfToImage renders the first page of a PDF
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Most receipts are single page
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes PDF, HEIC/HEIF and the standard library formats
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if mimeType == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF-")) {
		return pdfToImage(data)
	}

	// Go's standard image package doesn't support HEIC (common on iPhones)
	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF", ErrUnsupportedImage)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 with a HEIC-related brand
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// ConvertToJPEG re-encodes an uploaded image (or the first page of a PDF) as
// JPEG for the OCR endpoint. Transparent areas are flattened onto white.
func ConvertToJPEG(data []byte, contentType string) ([]byte, error) {
	img, err := decodeImage(data, normalizeMimeType(contentType))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	rgb := image.NewRGBA(bounds)
	draw.Draw(rgb, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(rgb, bounds, img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// convertToPNG converts PDFs and non-PNG images to PNG format
func convertToPNG(data []byte, mimeType string) ([]byte, error) {
	if mimeType == "image/png" && !isHEICFormat(data) {
		return data, nil
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("converting to PNG: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// prepareImageData returns the upload as PNG for the language model analyzers
func prepareImageData(data []byte, contentType string) ([]byte, error) {
	mimeType := normalizeMimeType(contentType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return convertToPNG(data, mimeType)
}
