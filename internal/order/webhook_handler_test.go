package order_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yuchialin/cvspay/internal/gateway"
	"github.com/yuchialin/cvspay/internal/order"
	"github.com/yuchialin/cvspay/internal/signature"
)

type mockWebhookService struct {
	markPaidErr    error
	applyErr       error
	paidCalls      []string
	paidTimes      []time.Time
	appliedInfos   []*gateway.PaymentInfo
	appliedUpdated bool
}

func (m *mockWebhookService) MarkPaid(ctx context.Context, merchantTradeNo string, paidAt time.Time) error {
	if m.markPaidErr != nil {
		return m.markPaidErr
	}
	m.paidCalls = append(m.paidCalls, merchantTradeNo)
	m.paidTimes = append(m.paidTimes, paidAt)
	return nil
}

func (m *mockWebhookService) ApplyPaymentInfo(ctx context.Context, info *gateway.PaymentInfo) (bool, error) {
	if m.applyErr != nil {
		return false, m.applyErr
	}
	m.appliedInfos = append(m.appliedInfos, info)
	return m.appliedUpdated, nil
}

var _ = Describe("Webhook Handler", func() {
	var (
		codec   *signature.Codec
		service *mockWebhookService
		handler *order.WebhookHandler
	)

	BeforeEach(func() {
		var err error
		codec, err = signature.NewCodec("5294y06JbISpM5x9", "v77hoKGq4kWxNNIS")
		Expect(err).NotTo(HaveOccurred())
		service = &mockWebhookService{appliedUpdated: true}
		handler = order.NewWebhookHandler(service, codec)
	})

	signedForm := func(params map[string]string) *strings.Reader {
		params[signature.MacField] = codec.Sign(params)
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		return strings.NewReader(values.Encode())
	}

	postForm := func(path string, body io.Reader, serve http.HandlerFunc) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, body)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		serve(rec, req)
		return rec
	}

	Describe("PaymentCallback", func() {
		successParams := func() map[string]string {
			return map[string]string{
				"MerchantID":      "2000132",
				"MerchantTradeNo": "BC2404261030007AAAA",
				"RtnCode":         "1",
				"RtnMsg":          "paid",
				"TradeAmt":        "299",
				"PaymentDate":     "2024/04/27 09:00:00",
			}
		}

		It("acknowledges a verified payment with the positive token", func() {
			rec := postForm("/gateway/callback", signedForm(successParams()), handler.PaymentCallback)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("1|OK"))
			Expect(service.paidCalls).To(Equal([]string{"BC2404261030007AAAA"}))
			Expect(service.paidTimes[0].Format(gateway.TradeDateLayout)).To(Equal("2024/04/27 09:00:00"))
		})

		It("rejects a tampered payload without an HTTP error status", func() {
			params := successParams()
			body := signedForm(params)
			raw, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			tampered := strings.Replace(string(raw), "299", "300", 1)

			rec := postForm("/gateway/callback", strings.NewReader(tampered), handler.PaymentCallback)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("0|CheckMacValue Error"))
			Expect(service.paidCalls).To(BeEmpty())
		})

		It("rejects an unsigned payload", func() {
			values := url.Values{}
			values.Set("MerchantTradeNo", "BC1")
			values.Set("RtnCode", "1")
			rec := postForm("/gateway/callback", strings.NewReader(values.Encode()), handler.PaymentCallback)
			Expect(rec.Body.String()).To(HavePrefix("0|"))
		})

		It("acknowledges a verified non-success notification without marking paid", func() {
			params := successParams()
			params["RtnCode"] = "10300066"
			rec := postForm("/gateway/callback", signedForm(params), handler.PaymentCallback)
			Expect(rec.Body.String()).To(Equal("1|OK"))
			Expect(service.paidCalls).To(BeEmpty())
		})

		It("answers an unknown trade with a negative token, never a 5xx", func() {
			service.markPaidErr = order.ErrTradeNotFound
			rec := postForm("/gateway/callback", signedForm(successParams()), handler.PaymentCallback)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("0|Trade Not Found"))
		})
	})

	Describe("PaymentInfoCallback", func() {
		It("applies segments from the flat form shape", func() {
			params := map[string]string{
				"MerchantID":      "2000132",
				"MerchantTradeNo": "BC1",
				"RtnCode":         "10100073",
				"RtnMsg":          "Get CVS Code Succeeded",
				"Barcode1":        "12345",
				"Barcode2":        "67890",
				"Barcode3":        "ABCDE",
			}
			rec := postForm("/gateway/payment-info", signedForm(params), handler.PaymentInfoCallback)
			Expect(rec.Body.String()).To(Equal("1|OK"))
			Expect(service.appliedInfos).To(HaveLen(1))
			Expect(service.appliedInfos[0].Segments).To(Equal([]string{"12345", "67890", "ABCDE"}))
		})

		It("applies segments from the nested JSON shape", func() {
			params := map[string]string{
				"MerchantID":      "2000132",
				"MerchantTradeNo": "BC1",
				"RtnCode":         "10100073",
				"RtnMsg":          "ok",
			}
			params[signature.MacField] = codec.Sign(params)

			payload := map[string]interface{}{
				"MerchantID":      "2000132",
				"MerchantTradeNo": "BC1",
				"RtnCode":         10100073,
				"RtnMsg":          "ok",
				signature.MacField: params[signature.MacField],
				"PaymentInfo": map[string]interface{}{
					"Barcode1": "AAA",
					"Barcode2": "BBB",
				},
			}
			raw, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodPost, "/gateway/payment-info", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			handler.PaymentInfoCallback(rec, req)

			Expect(rec.Body.String()).To(Equal("1|OK"))
			Expect(service.appliedInfos).To(HaveLen(1))
			Expect(service.appliedInfos[0].Segments).To(Equal([]string{"AAA", "BBB"}))
		})

		It("rejects a forged payload", func() {
			params := map[string]string{
				"MerchantTradeNo": "BC1",
				"RtnCode":         "10100073",
				"Barcode1":        "12345",
			}
			params[signature.MacField] = strings.Repeat("0", 64)
			values := url.Values{}
			for k, v := range params {
				values.Set(k, v)
			}
			rec := postForm("/gateway/payment-info", strings.NewReader(values.Encode()), handler.PaymentInfoCallback)
			Expect(rec.Body.String()).To(Equal("0|CheckMacValue Error"))
			Expect(service.appliedInfos).To(BeEmpty())
		})

		It("answers an unknown trade with a negative token", func() {
			service.applyErr = order.ErrTradeNotFound
			params := map[string]string{
				"MerchantTradeNo": "BC404",
				"RtnCode":         "10100073",
				"Barcode1":        "12345",
			}
			rec := postForm("/gateway/payment-info", signedForm(params), handler.PaymentInfoCallback)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(Equal("0|Trade Not Found"))
		})
	})
})
