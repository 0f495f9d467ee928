package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func samplePNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("ConvertToJPEG", func() {
	It("re-encodes a PNG upload as JPEG", func() {
		out, err := ConvertToJPEG(samplePNG(), "image/png")
		Expect(err).NotTo(HaveOccurred())

		img, err := jpeg.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dx()).To(Equal(4))
	})

	It("ignores content type parameters", func() {
		_, err := ConvertToJPEG(samplePNG(), "image/png; charset=binary")
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects data that is not an image", func() {
		_, err := ConvertToJPEG([]byte("definitely not an image"), "image/jpeg")
		Expect(err).To(MatchError(ErrUnsupportedImage))
	})
})

var _ = Describe("prepareImageData", func() {
	It("passes PNG data through", func() {
		data := samplePNG()
		out, err := prepareImageData(data, "IMAGE/PNG ")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("converts JPEG data to PNG", func() {
		jpg, err := ConvertToJPEG(samplePNG(), "image/png")
		Expect(err).NotTo(HaveOccurred())

		out, err := prepareImageData(jpg, "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(Equal(jpg))
		_, err = png.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects data that is not an image", func() {
		_, err := prepareImageData([]byte("hello"), "text/plain")
		Expect(err).To(MatchError(ErrUnsupportedImage))
	})
})

var _ = DescribeTable("isHEICFormat",
	func(data []byte, expected bool) {
		Expect(isHEICFormat(data)).To(Equal(expected))
	},
	Entry("heic brand", []byte("\x00\x00\x00\x18ftypheic\x00\x00"), true),
	Entry("mif1 brand", []byte("\x00\x00\x00\x18ftypmif1\x00\x00"), true),
	Entry("mp4 brand", []byte("\x00\x00\x00\x18ftypisom\x00\x00"), false),
	Entry("too short", []byte("ftyp"), false),
)

var _ = DescribeTable("isHEICMimeType",
	func(mimeType string, expected bool) {
		Expect(isHEICMimeType(mimeType)).To(Equal(expected))
	},
	Entry("heic", "image/heic", true),
	Entry("heif upper case", " IMAGE/HEIF", true),
	Entry("jpeg", "image/jpeg", false),
)
