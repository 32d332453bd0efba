package barcode_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yuchialin/cvspay/internal/barcode"
)

var _ = Describe("Barcode Handler", func() {
	var (
		handler *barcode.Handler
		router  *chi.Mux
	)

	BeforeEach(func() {
		handler = barcode.NewHandler()
		router = chi.NewRouter()
		router.Get("/barcode/generate/{text}", handler.Generate)
		router.Post("/barcode/generate-multi", handler.GenerateMulti)
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	Describe("Generate", func() {
		It("serves an SVG document for valid text", func() {
			rec := get("/barcode/generate/HELLO123")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/svg+xml"))
			Expect(rec.Body.String()).To(ContainSubstring("<svg"))
			Expect(rec.Body.String()).To(ContainSubstring("*HELLO123*"))
		})

		It("honors width and height overrides", func() {
			rec := get("/barcode/generate/A?width=400&height=120&show_text=false")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`width="400"`))
		})

		It("returns the JSON envelope with validation output on request", func() {
			rec := get("/barcode/generate/" + strings.Repeat("A", 25) + "?format=json")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp barcode.RenderResponse
			Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.SVG).To(ContainSubstring("<svg"))
			Expect(resp.Pattern).NotTo(BeEmpty())
			Expect(resp.Validation.IsValid).To(BeTrue())
			Expect(resp.Validation.Warnings).NotTo(BeEmpty())
		})

		It("enumerates invalid characters in the error body", func() {
			rec := get("/barcode/generate/HE@LO")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("ENCODING_FAILED"))
			Expect(rec.Body.String()).To(ContainSubstring("@"))
		})
	})

	Describe("GenerateMulti", func() {
		post := func(payload interface{}) *httptest.ResponseRecorder {
			body, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())
			req := httptest.NewRequest(http.MethodPost, "/barcode/generate-multi", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		It("stacks up to three segments", func() {
			rec := post(barcode.MultiRenderDTO{Segments: []string{"12345", "67890", "ABCDE"}})
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/svg+xml"))
			Expect(rec.Body.String()).To(ContainSubstring("<svg"))
		})

		It("rejects a fourth segment", func() {
			rec := post(barcode.MultiRenderDTO{Segments: []string{"A", "B", "C", "D"}})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a malformed body", func() {
			req := httptest.NewRequest(http.MethodPost, "/barcode/generate-multi", strings.NewReader("{"))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
