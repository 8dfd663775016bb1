package totp

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// Bitmap is a minimal raster form of a QR symbol: the square module matrix
// flattened row-major into a bit stream where a dark module is 0 and a
// light module is 1, right-padded with zero bits to a byte boundary. The
// caller re-inflates it by reading Size*Size bits back in the same order.
type Bitmap struct {
	Size      int    `json:"size"`
	Padding   int    `json:"padding"`
	BitmapB64 string `json:"bitmap_b64"`
}

// QRBitmap encodes data as a QR symbol at the lowest version and error
// correction level (L) that fits the payload, without a quiet-zone border,
// and packs the module matrix into a Bitmap.
func QRBitmap(data string) (*Bitmap, error) {
	q, err := qrcode.New(data, qrcode.Low)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true

	matrix := q.Bitmap()
	size := len(matrix)
	bits := size * size
	padding := (8 - bits%8) % 8

	packed := make([]byte, (bits+padding)/8)
	i := 0
	for _, row := range matrix {
		for _, dark := range row {
			if !dark {
				packed[i/8] |= 1 << (7 - i%8)
			}
			i++
		}
	}
	// Pad bits stay zero, matching the dark=0 convention.

	return &Bitmap{
		Size:      size,
		Padding:   padding,
		BitmapB64: base64.StdEncoding.EncodeToString(packed),
	}, nil
}
