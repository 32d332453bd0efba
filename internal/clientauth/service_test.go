package clientauth_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/internal/clientauth"
)

func TestClientAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Client Auth Suite")
}

type mockClientRepository struct {
	clients map[string]*clientauth.Client
}

func newMockClientRepository() *mockClientRepository {
	return &mockClientRepository{clients: make(map[string]*clientauth.Client)}
}

func (m *mockClientRepository) GetByClientID(clientID string) (*clientauth.Client, error) {
	client, exists := m.clients[clientID]
	if !exists {
		return nil, errors.New("client not found")
	}
	return client, nil
}

var _ = Describe("Client Auth Service", func() {
	var (
		repo    *mockClientRepository
		service *clientauth.Service
	)

	const apiKey = "sk-test-4f7a9b2c"

	addClient := func(clientID string, active bool) {
		hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		repo.clients[clientID] = &clientauth.Client{
			ID:         int64(len(repo.clients) + 1),
			ClientID:   clientID,
			Name:       "Test Shop",
			APIKeyHash: string(hash),
			Active:     active,
		}
	}

	BeforeEach(func() {
		repo = newMockClientRepository()
		tokenGen := clientauth.NewJWTTokenGenerator("test-secret-key-that-is-long-enough", time.Hour)
		service = clientauth.NewService(repo, tokenGen, bcrypt.MinCost)
	})

	Describe("Authenticate", func() {
		It("issues a bearer token for valid credentials", func() {
			addClient("shop-a", true)

			tokens, err := service.Authenticate(clientauth.TokenRequestDTO{
				ClientID: "shop-a",
				APIKey:   apiKey,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens.AccessToken).NotTo(BeEmpty())
			Expect(tokens.TokenType).To(Equal("Bearer"))
			Expect(tokens.ExpiresIn).To(Equal(int64(3600)))
		})

		It("rejects a wrong API key", func() {
			addClient("shop-a", true)

			_, err := service.Authenticate(clientauth.TokenRequestDTO{
				ClientID: "shop-a",
				APIKey:   "wrong-key",
			})
			Expect(err).To(Equal(internal.ErrInvalidCredentials))
		})

		It("rejects an unknown client id", func() {
			_, err := service.Authenticate(clientauth.TokenRequestDTO{
				ClientID: "ghost",
				APIKey:   apiKey,
			})
			Expect(err).To(Equal(internal.ErrInvalidCredentials))
		})

		It("rejects an inactive client even with valid credentials", func() {
			addClient("shop-a", false)

			_, err := service.Authenticate(clientauth.TokenRequestDTO{
				ClientID: "shop-a",
				APIKey:   apiKey,
			})
			Expect(err).To(Equal(internal.ErrClientInactive))
		})

		It("rejects missing fields before touching the repository", func() {
			_, err := service.Authenticate(clientauth.TokenRequestDTO{ClientID: "shop-a"})
			Expect(err).To(BeAssignableToTypeOf(clientauth.ValidationError{}))
		})
	})

	Describe("ValidateAccessToken", func() {
		It("round-trips the client id through the token", func() {
			addClient("shop-a", true)
			tokens, err := service.Authenticate(clientauth.TokenRequestDTO{
				ClientID: "shop-a",
				APIKey:   apiKey,
			})
			Expect(err).NotTo(HaveOccurred())

			claims, err := service.ValidateAccessToken(tokens.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.ClientID).To(Equal("shop-a"))
		})

		It("rejects a garbage token", func() {
			_, err := service.ValidateAccessToken("not-a-jwt")
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})

		It("rejects an expired token", func() {
			addClient("shop-a", true)
			expiredGen := clientauth.NewJWTTokenGenerator("test-secret-key-that-is-long-enough", -time.Hour)
			expiredService := clientauth.NewService(repo, expiredGen, bcrypt.MinCost)

			token, err := expiredGen.GenerateAccessToken("shop-a")
			Expect(err).NotTo(HaveOccurred())

			_, err = expiredService.ValidateAccessToken(token)
			Expect(err).To(Equal(internal.ErrTokenExpired))
		})

		It("rejects a token signed with another secret", func() {
			addClient("shop-a", true)
			foreignGen := clientauth.NewJWTTokenGenerator("a-completely-different-secret-value", time.Hour)
			token, err := foreignGen.GenerateAccessToken("shop-a")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ValidateAccessToken(token)
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})

		It("rejects a token for a client deactivated after issuance", func() {
			addClient("shop-a", true)
			tokens, err := service.Authenticate(clientauth.TokenRequestDTO{
				ClientID: "shop-a",
				APIKey:   apiKey,
			})
			Expect(err).NotTo(HaveOccurred())

			repo.clients["shop-a"].Active = false
			_, err = service.ValidateAccessToken(tokens.AccessToken)
			Expect(err).To(Equal(internal.ErrClientInactive))
		})
	})

	Describe("HashAPIKey", func() {
		It("produces a hash that verifies with bcrypt", func() {
			hash, err := service.HashAPIKey("fresh-key")
			Expect(err).NotTo(HaveOccurred())
			Expect(bcrypt.CompareHashAndPassword([]byte(hash), []byte("fresh-key"))).To(Succeed())
		})
	})
})
