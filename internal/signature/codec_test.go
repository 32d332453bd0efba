package signature

import (
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSignature(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Signature Codec Suite")
}

var _ = Describe("Codec", func() {
	var codec *Codec

	BeforeEach(func() {
		var err error
		codec, err = NewCodec("5294y06JbISpM5x9", "v77hoKGq4kWxNNIS")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewCodec", func() {
		It("rejects an empty hash key", func() {
			_, err := NewCodec("", "iv")
			Expect(err).To(MatchError(ErrMissingCredentials))
		})

		It("rejects an empty hash iv", func() {
			_, err := NewCodec("key", "")
			Expect(err).To(MatchError(ErrMissingCredentials))
		})
	})

	Describe("canonical", func() {
		It("sorts keys case-insensitively and wraps with the credential pair", func() {
			params := map[string]string{
				"MerchantID":     "2000132",
				"amount":         "299",
				"TradeDesc":      "test order",
				"CheckMacValue":  "SHOULD_BE_DROPPED",
				"MerchantTradeNo": "BC123",
			}
			got := codec.canonical(params)
			Expect(got).To(Equal(
				"hashkey%3d5294y06jbispm5x9" +
					"%26amount%3d299" +
					"%26merchantid%3d2000132" +
					"%26merchanttradeno%3dbc123" +
					"%26tradedesc%3dtest+order" +
					"%26hashiv%3dv77hokgq4kwxnnis"))
		})

		It("escapes reserved characters through percent sequences", func() {
			got := codec.canonical(map[string]string{"ItemName": "a!b'c(d)e*f"})
			Expect(got).To(ContainSubstring("a%21b%27c%28d%29e%2af"))
		})

		It("renders spaces as plus signs", func() {
			got := codec.canonical(map[string]string{"TradeDesc": "hello world"})
			Expect(got).To(ContainSubstring("tradedesc%3dhello+world"))
		})
	})

	Describe("Sign", func() {
		It("is deterministic", func() {
			params := map[string]string{"A": "1", "B": "2"}
			Expect(codec.Sign(params)).To(Equal(codec.Sign(params)))
		})

		It("produces an upper-case 64 character hex digest", func() {
			mac := codec.Sign(map[string]string{"A": "1"})
			Expect(mac).To(HaveLen(64))
			Expect(mac).To(MatchRegexp(`^[0-9A-F]{64}$`))
		})

		It("ignores any pre-existing digest field", func() {
			base := map[string]string{"A": "1", "B": "2"}
			withMac := map[string]string{"A": "1", "B": "2", MacField: "FFFF"}
			Expect(codec.Sign(withMac)).To(Equal(codec.Sign(base)))
		})

		It("changes when any field value changes", func() {
			base := codec.Sign(map[string]string{"A": "1", "B": "2"})
			Expect(codec.Sign(map[string]string{"A": "1", "B": "3"})).NotTo(Equal(base))
			Expect(codec.Sign(map[string]string{"A": "2", "B": "2"})).NotTo(Equal(base))
		})

		It("changes when the credentials change", func() {
			other, err := NewCodec("otherkey", "otheriv")
			Expect(err).NotTo(HaveOccurred())
			params := map[string]string{"A": "1"}
			Expect(other.Sign(params)).NotTo(Equal(codec.Sign(params)))
		})
	})

	Describe("Verify", func() {
		It("round-trips with Sign", func() {
			params := map[string]string{
				"MerchantID": "2000132",
				"RtnCode":    "1",
				"TradeNo":    "2404261234567890",
			}
			params[MacField] = codec.Sign(params)
			Expect(codec.Verify(params)).To(Succeed())
		})

		It("accepts a lower-case digest from the peer", func() {
			params := map[string]string{"A": "1"}
			params[MacField] = strings.ToLower(codec.Sign(params))
			Expect(codec.Verify(params)).To(Succeed())
		})

		It("rejects a tampered field", func() {
			params := map[string]string{"RtnCode": "1", "TradeAmt": "299"}
			params[MacField] = codec.Sign(params)
			params["TradeAmt"] = "300"
			Expect(codec.Verify(params)).To(MatchError(ErrMacMismatch))
		})

		It("rejects a missing digest", func() {
			Expect(codec.Verify(map[string]string{"A": "1"})).To(MatchError(ErrMacMissing))
		})

		It("rejects a forged digest", func() {
			params := map[string]string{"A": "1", MacField: "0000"}
			Expect(codec.Verify(params)).To(MatchError(ErrMacMismatch))
		})
	})
})
