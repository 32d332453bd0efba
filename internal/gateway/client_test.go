package gateway_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/internal/gateway"
	"github.com/yuchialin/cvspay/internal/signature"
)

func TestGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gateway Client Suite")
}

var _ = Describe("Client", func() {
	var (
		codec        *signature.Codec
		logger       *slog.Logger
		server       *httptest.Server
		client       *gateway.Client
		requestCount int
		lastForm     map[string]string
		responseBody string
		responseType string
		responseCode int
	)

	newClient := func() *gateway.Client {
		cfg := internal.GatewayConfig{
			MerchantID:     "2000132",
			HashKey:        "5294y06JbISpM5x9",
			HashIV:         "v77hoKGq4kWxNNIS",
			CreateOrderURL: server.URL + "/Cashier/AioCheckOut",
			QueryInfoURL:   server.URL + "/Cashier/QueryPaymentInfo",
			ReturnURL:      "https://merchant.example.com/gateway/callback",
			PaymentInfoURL: "https://merchant.example.com/gateway/payment-info",
			RequestTimeout: 2 * time.Second,
			ExpireDays:     7,
		}
		c := gateway.NewClient(cfg, codec, logger)
		return c.WithClock(func() time.Time {
			return time.Date(2024, 4, 26, 10, 30, 0, 0, time.Local)
		})
	}

	BeforeEach(func() {
		var err error
		codec, err = signature.NewCodec("5294y06JbISpM5x9", "v77hoKGq4kWxNNIS")
		Expect(err).NotTo(HaveOccurred())
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		requestCount = 0
		lastForm = nil
		responseBody = "RtnCode=1&RtnMsg=Succeeded"
		responseType = "text/plain"
		responseCode = http.StatusOK

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestCount++
			Expect(r.ParseForm()).To(Succeed())
			lastForm = make(map[string]string)
			for k := range r.PostForm {
				lastForm[k] = r.PostForm.Get(k)
			}
			w.Header().Set("Content-Type", responseType)
			w.WriteHeader(responseCode)
			_, _ = w.Write([]byte(responseBody))
		}))
		client = newClient()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("MerchantTradeNo", func() {
		It("stays within the gateway length ceiling", func() {
			tradeNo := client.MerchantTradeNo(9223372036854775807)
			Expect(len(tradeNo)).To(BeNumerically("<=", gateway.MerchantTradeNoMaxLen))
			Expect(tradeNo).To(HavePrefix("BC"))
		})

		It("differs between calls for the same order", func() {
			Expect(client.MerchantTradeNo(42)).NotTo(Equal(client.MerchantTradeNo(42)))
		})
	})

	Describe("TruncateDescription", func() {
		It("leaves short descriptions alone", func() {
			Expect(gateway.TruncateDescription("short", 200)).To(Equal("short"))
		})

		It("truncates long descriptions with an ellipsis marker", func() {
			long := strings.Repeat("x", 300)
			got := gateway.TruncateDescription(long, 200)
			Expect(len(got)).To(Equal(200))
			Expect(got).To(HaveSuffix("..."))
		})

		It("never splits a multi-byte rune", func() {
			long := strings.Repeat("中", 100)
			got := gateway.TruncateDescription(long, 200)
			Expect(len(got)).To(BeNumerically("<=", 200))
			Expect([]rune(got)).NotTo(ContainElement('�'))
		})
	})

	Describe("CreateBarcodeOrder", func() {
		req := gateway.CreateOrderRequest{
			OrderID:      7,
			Amount:       299,
			Description:  "test product",
			ClientSystem: "shop-a",
		}

		It("rejects amounts below the barcode floor before calling the gateway", func() {
			bad := req
			bad.Amount = 0
			_, err := client.CreateBarcodeOrder(context.Background(), bad, "BC0001")
			Expect(err).To(HaveOccurred())
			Expect(requestCount).To(BeZero())
		})

		It("rejects amounts above the barcode ceiling before calling the gateway", func() {
			bad := req
			bad.Amount = 6001
			_, err := client.CreateBarcodeOrder(context.Background(), bad, "BC0001")
			Expect(err).To(HaveOccurred())
			Expect(requestCount).To(BeZero())
		})

		It("signs the outbound parameter set", func() {
			_, err := client.CreateBarcodeOrder(context.Background(), req, "BC2404261030007AAAA")
			Expect(err).NotTo(HaveOccurred())
			Expect(lastForm).To(HaveKey(signature.MacField))
			Expect(codec.Verify(lastForm)).To(Succeed())
		})

		It("formats the trade date in the gateway layout", func() {
			_, err := client.CreateBarcodeOrder(context.Background(), req, "BC1")
			Expect(err).NotTo(HaveOccurred())
			Expect(lastForm["MerchantTradeDate"]).To(Equal("2024/04/26 10:30:00"))
		})

		It("handles direct mode when segments arrive synchronously", func() {
			responseBody = "RtnCode=1&RtnMsg=Succeeded&TradeNo=2404261234&Barcode1=111&Barcode2=222&Barcode3=333&ExpireDate=2024/05/03"
			result, err := client.CreateBarcodeOrder(context.Background(), req, "BC1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Mode).To(Equal(gateway.ModeDirect))
			Expect(result.Segments).To(Equal([]string{"111", "222", "333"}))
			Expect(result.GatewayTradeNo).To(Equal("2404261234"))
			Expect(result.ExpireDate.Format("2006/01/02")).To(Equal("2024/05/03"))
		})

		It("handles deferred mode when segments are pending", func() {
			responseBody = "RtnCode=1&RtnMsg=order accepted"
			result, err := client.CreateBarcodeOrder(context.Background(), req, "BC1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Mode).To(Equal(gateway.ModeDeferred))
			Expect(result.Segments).To(BeEmpty())
			Expect(result.EstimatedReadyAt).To(BeTemporally(">", time.Date(2024, 4, 26, 10, 30, 0, 0, time.Local)))
		})

		It("handles redirect mode when the gateway answers with a checkout page", func() {
			responseType = "text/html"
			responseBody = "<html><body>checkout</body></html>"
			result, err := client.CreateBarcodeOrder(context.Background(), req, "BC1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Mode).To(Equal(gateway.ModeRedirect))
			Expect(result.Form).NotTo(BeNil())
			Expect(result.Form.Method).To(Equal(http.MethodPost))
			Expect(result.Form.Fields).To(HaveKey(signature.MacField))
		})

		It("surfaces a gateway rejection", func() {
			responseBody = "RtnCode=10200052&RtnMsg=order failed"
			_, err := client.CreateBarcodeOrder(context.Background(), req, "BC1")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayRejected))
		})

		It("treats a non-2xx answer as a recoverable gateway failure", func() {
			responseCode = http.StatusBadGateway
			_, err := client.CreateBarcodeOrder(context.Background(), req, "BC1")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayUnavailable))
		})

		It("treats a malformed response as a recoverable gateway failure", func() {
			responseBody = "%%%not-a-form"
			_, err := client.CreateBarcodeOrder(context.Background(), req, "BC1")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayUnavailable))
		})
	})

	Describe("QueryPaymentInfo", func() {
		It("parses a form-encoded query response", func() {
			responseBody = "RtnCode=10100073&RtnMsg=Get CVS Code Succeeded&MerchantTradeNo=BC1&TradeNo=2404265678&Barcode1=12345&Barcode2=67890&ExpireDate=2024/05/03 23:59:59"
			info, err := client.QueryPaymentInfo(context.Background(), "BC1")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.RtnCode).To(Equal(gateway.RtnCodeBarcodeIssued))
			Expect(info.Segments).To(Equal([]string{"12345", "67890"}))
			Expect(info.GatewayTradeNo).To(Equal("2404265678"))
		})

		It("parses a JSON query response with nested payment info", func() {
			responseType = "application/json"
			responseBody = `{"RtnCode":10100073,"RtnMsg":"ok","MerchantTradeNo":"BC1","PaymentInfo":{"Barcode1":"AAA","Barcode2":"BBB","Barcode3":"CCC"}}`
			info, err := client.QueryPaymentInfo(context.Background(), "BC1")
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Segments).To(Equal([]string{"AAA", "BBB", "CCC"}))
		})

		It("signs the query parameters", func() {
			_, _ = client.QueryPaymentInfo(context.Background(), "BC1")
			Expect(lastForm).To(HaveKey(signature.MacField))
			Expect(codec.Verify(lastForm)).To(Succeed())
		})
	})
})

var _ = Describe("payload adapter", func() {
	Describe("SegmentsFromParams", func() {
		It("collects segments in order", func() {
			segments := gateway.SegmentsFromParams(map[string]string{
				"Barcode1": "111", "Barcode2": "222", "Barcode3": "333",
			})
			Expect(segments).To(Equal([]string{"111", "222", "333"}))
		})

		It("drops empty segments", func() {
			segments := gateway.SegmentsFromParams(map[string]string{
				"Barcode1": "111", "Barcode2": "", "Barcode3": "333",
			})
			Expect(segments).To(Equal([]string{"111", "333"}))
		})

		It("returns nil when no segment fields exist", func() {
			Expect(gateway.SegmentsFromParams(map[string]string{"RtnCode": "1"})).To(BeNil())
		})
	})

	Describe("SegmentsFromPayload", func() {
		It("prefers the nested PaymentInfo shape", func() {
			payload := map[string]interface{}{
				"Barcode1": "flat",
				"PaymentInfo": map[string]interface{}{
					"Barcode1": "nested1",
					"Barcode2": "nested2",
				},
			}
			Expect(gateway.SegmentsFromPayload(payload)).To(Equal([]string{"nested1", "nested2"}))
		})

		It("falls back to flat top-level fields", func() {
			payload := map[string]interface{}{
				"Barcode1": "111",
				"Barcode2": "222",
			}
			Expect(gateway.SegmentsFromPayload(payload)).To(Equal([]string{"111", "222"}))
		})
	})

	Describe("TopLevelParams", func() {
		It("keeps scalars and drops nested objects", func() {
			params := gateway.TopLevelParams(map[string]interface{}{
				"RtnCode":     float64(1),
				"RtnMsg":      "ok",
				"PaymentInfo": map[string]interface{}{"Barcode1": "x"},
			})
			Expect(params).To(Equal(map[string]string{"RtnCode": "1", "RtnMsg": "ok"}))
		})
	})

	Describe("JoinSegments", func() {
		It("joins with dashes for display", func() {
			Expect(gateway.JoinSegments([]string{"12345", "67890", "ABCDE"})).To(Equal("12345-67890-ABCDE"))
		})

		It("round-trips through SplitSegments", func() {
			segments := []string{"A1", "B2", "C3"}
			Expect(gateway.SplitSegments(gateway.JoinSegments(segments))).To(Equal(segments))
		})
	})
})
