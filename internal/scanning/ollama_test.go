package scanning

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/zombor/receipt-vision/internal/document"
)

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		analyzer *Ollama
		pngData  []byte
		docs     []document.Document
		err      error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		analyzer, err = NewOllama(server.URL(), "qwen2-vl:7b", nil)
		Expect(err).NotTo(HaveOccurred())
		pngData = samplePNG()
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		docs, err = analyzer.Analyze(context.Background(), pngData, "image/png")
	})

	When("the model answers with receipt JSON", func() {
		var received ollamaChatRequest

		BeforeEach(func() {
			answer, _ := json.Marshal(ollamaChatResponse{
				Done: true,
				Message: ollamaMessage{
					Role:    "assistant",
					Content: `{"documents":[{"MerchantName":{"value":"Acme","confidence":0.9},"Total":{"value":12.5,"confidence":0.8}}]}`,
				},
			})
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, _ := io.ReadAll(r.Body)
					Expect(json.Unmarshal(body, &received)).To(Succeed())
				},
				ghttp.RespondWith(http.StatusOK, answer),
			))
		})

		It("returns the parsed documents", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			f, _ := docs[0].Lookup(document.Total)
			Expect(f.Monetary()).To(Equal("12.5"))
		})

		It("sends the image with the prompt", func() {
			Expect(received.Model).To(Equal("qwen2-vl:7b"))
			Expect(received.Format).To(Equal("json"))
			Expect(received.Messages).To(HaveLen(2))
			Expect(received.Messages[1].Images).To(HaveLen(1))
		})
	})

	When("ollama returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, `model not found`))
		})

		It("returns a RejectedError", func() {
			var rejected *RejectedError
			Expect(errors.As(err, &rejected)).To(BeTrue())
			Expect(rejected.Status).To(Equal(http.StatusNotFound))
			Expect(rejected.Body).To(Equal("model not found"))
		})
	})

	When("the model answer is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Done:    true,
				Message: ollamaMessage{Role: "assistant", Content: "I cannot read this receipt"},
			}))
		})

		It("returns a malformed response error", func() {
			Expect(err).To(MatchError(ErrMalformedResponse))
		})
	})
})
