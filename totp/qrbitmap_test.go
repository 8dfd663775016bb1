package totp

import (
	"encoding/base64"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
)

func TestQRBitmapPacking(t *testing.T) {
	const data = "otpauth://totp/authcore:alice?secret=JBSWY3DPEHPK3PXP&issuer=authcore"

	bm, err := QRBitmap(data)
	if err != nil {
		t.Fatalf("QRBitmap failed: %v", err)
	}

	if bm.Size < 21 || bm.Size%2 == 0 {
		t.Fatalf("implausible QR size %d", bm.Size)
	}

	bits := bm.Size * bm.Size
	wantPadding := (8 - bits%8) % 8
	if bm.Padding != wantPadding {
		t.Fatalf("padding = %d, want %d", bm.Padding, wantPadding)
	}

	packed, err := base64.StdEncoding.DecodeString(bm.BitmapB64)
	if err != nil {
		t.Fatalf("bitmap is not valid base64: %v", err)
	}
	if len(packed)*8 != bits+bm.Padding {
		t.Fatalf("packed length %d bytes does not cover %d bits + %d padding", len(packed), bits, bm.Padding)
	}

	// Re-inflate and compare module-for-module against the source matrix:
	// dark = 0, light = 1, row-major, MSB first.
	q, err := qrcode.New(data, qrcode.Low)
	if err != nil {
		t.Fatalf("qrcode.New failed: %v", err)
	}
	q.DisableBorder = true
	matrix := q.Bitmap()
	if len(matrix) != bm.Size {
		t.Fatalf("matrix size %d != bitmap size %d", len(matrix), bm.Size)
	}

	i := 0
	for y, row := range matrix {
		for x, dark := range row {
			bit := (packed[i/8] >> (7 - i%8)) & 1
			if dark && bit != 0 {
				t.Fatalf("module (%d,%d) is dark but bit %d is 1", x, y, i)
			}
			if !dark && bit != 1 {
				t.Fatalf("module (%d,%d) is light but bit %d is 0", x, y, i)
			}
			i++
		}
	}

	// Trailing pad bits are zero.
	for p := bits; p < bits+bm.Padding; p++ {
		if (packed[p/8]>>(7-p%8))&1 != 0 {
			t.Fatalf("pad bit %d is not zero", p)
		}
	}

	// The finder pattern guarantees a dark top-left module.
	if (packed[0]>>7)&1 != 0 {
		t.Fatal("top-left module must be dark (bit 0)")
	}
}

func TestQRBitmapGrowsWithPayload(t *testing.T) {
	small, err := QRBitmap("short")
	if err != nil {
		t.Fatalf("QRBitmap failed: %v", err)
	}
	large, err := QRBitmap("otpauth://totp/authcore:a-much-longer-account-name@example.com?secret=JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP&issuer=authcore&period=30&digits=6&algorithm=SHA1")
	if err != nil {
		t.Fatalf("QRBitmap failed: %v", err)
	}
	if large.Size <= small.Size {
		t.Fatalf("longer payload should pick a larger version: %d <= %d", large.Size, small.Size)
	}
}
