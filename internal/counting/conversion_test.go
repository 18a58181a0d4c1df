package counting

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/gif"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("stripDataURI", func() {
	When("the payload has a data URI prefix", func() {
		It("should return the bare base64 text", func() {
			encoded, _ := stripDataURI("data:image/png;base64,aGVsbG8=")
			Expect(encoded).To(Equal("aGVsbG8="))
		})

		It("should return the MIME type from the prefix", func() {
			_, mimeType := stripDataURI("data:image/PNG;base64,aGVsbG8=")
			Expect(mimeType).To(Equal("image/png"))
		})
	})

	When("the payload is bare base64", func() {
		It("should return it unchanged", func() {
			encoded, mimeType := stripDataURI("aGVsbG8=")
			Expect(encoded).To(Equal("aGVsbG8="))
			Expect(mimeType).To(Equal("image/jpeg"))
		})
	})
})

var _ = Describe("decodePayload", func() {
	var (
		payload  string
		data     []byte
		mimeType string
		err      error
	)

	JustBeforeEach(func() {
		data, mimeType, err = decodePayload(payload)
	})

	When("the payload is a valid data URI", func() {
		BeforeEach(func() {
			payload = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("fake image data"))
		})

		It("should decode the bytes", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("fake image data")))
			Expect(mimeType).To(Equal("image/jpeg"))
		})
	})

	When("the payload is unpadded base64", func() {
		BeforeEach(func() {
			payload = base64.RawStdEncoding.EncodeToString([]byte("ab"))
		})

		It("should decode the bytes", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("ab")))
		})
	})

	When("the payload is empty", func() {
		BeforeEach(func() {
			payload = "data:image/jpeg;base64,"
		})

		It("returns ErrEmptyImage", func() {
			Expect(err).To(MatchError(ErrEmptyImage))
		})
	})

	When("the payload is not base64", func() {
		BeforeEach(func() {
			payload = "not base64 at all!"
		})

		It("returns ErrInvalidImage", func() {
			Expect(err).To(MatchError(ErrInvalidImage))
		})
	})
})

var _ = Describe("prepareImageData", func() {
	When("the capture is a JPEG", func() {
		It("should pass the bytes through untouched", func() {
			payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))
			data, mimeType, err := prepareImageData(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("jpeg bytes")))
			Expect(mimeType).To(Equal("image/jpeg"))
		})
	})

	When("the capture is a GIF", func() {
		It("should convert it to PNG", func() {
			img := image.NewPaletted(image.Rect(0, 0, 2, 2), []color.Color{color.White, color.Black})
			var buf bytes.Buffer
			Expect(gif.Encode(&buf, img, nil)).To(Succeed())

			payload := "data:image/gif;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
			data, mimeType, err := prepareImageData(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/png"))
			Expect(data[:8]).To(Equal([]byte("\x89PNG\r\n\x1a\n")))
		})
	})

	When("the capture is a PDF", func() {
		It("should render the first page as PNG", func() {
			payload := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(singlePagePDF())
			data, mimeType, err := prepareImageData(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(mimeType).To(Equal("image/png"))
			Expect(data[:8]).To(Equal([]byte("\x89PNG\r\n\x1a\n")))
		})
	})

	When("the PDF is corrupt", func() {
		It("returns ErrInvalidImage", func() {
			payload := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("not a pdf"))
			_, _, err := prepareImageData(payload)
			Expect(err).To(MatchError(ErrInvalidImage))
		})
	})

	When("the GIF is corrupt", func() {
		It("returns ErrInvalidImage", func() {
			payload := "data:image/gif;base64," + base64.StdEncoding.EncodeToString([]byte("GIF89a"))
			_, _, err := prepareImageData(payload)
			Expect(err).To(MatchError(ErrInvalidImage))
		})
	})
})

// singlePagePDF builds a blank one-page PDF with a valid xref table
func singlePagePDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 20 20] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

var _ = Describe("isHEICFormat", func() {
	It("should detect the heic brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("should reject short data", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})
})

var _ = Describe("imageFormat", func() {
	It("should return the MIME subtype", func() {
		Expect(imageFormat("image/png")).To(Equal("png"))
	})

	It("should default to jpeg", func() {
		Expect(imageFormat("garbage")).To(Equal("jpeg"))
	})
})
