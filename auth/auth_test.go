package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Wrong password must not match
	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "NoDigitPass!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("unit-test-secret", time.Hour)

	signed, err := tokens.GenerateToken("user-42", []string{"user"})
	req.NoError(err)

	claims, err := tokens.ValidateToken(signed)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal([]string{"user"}, claims.Roles)
}

func TestTokenValidation_Failures(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("unit-test-secret", time.Hour)

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		other := NewTokenManager("different-secret", time.Hour)
		signed, err := other.GenerateToken("user-42", nil)
		req.NoError(err)

		_, err = tokens.ValidateToken(signed)
		req.Error(err)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		expired := NewTokenManager("unit-test-secret", -time.Minute)
		signed, err := expired.GenerateToken("user-42", nil)
		req.NoError(err)

		_, err = tokens.ValidateToken(signed)
		req.Error(err)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := tokens.ValidateToken("not-a-jwt")
		req.Error(err)
	})
}

func TestMiddleware(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager("unit-test-secret", time.Hour)

	var seenUserID string
	handler := Middleware(tokens, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID, _ = UserID(r.Context())
	}))

	t.Run("should inject the caller identity", func(t *testing.T) {
		signed, err := tokens.GenerateToken("user-42", []string{"user"})
		req.NoError(err)

		r := httptest.NewRequest(http.MethodGet, "/chats/1/messages", nil)
		r.Header.Set("Authorization", "Bearer "+signed)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		req.Equal(http.StatusOK, w.Code)
		req.Equal("user-42", seenUserID)
	})

	t.Run("should reject a missing header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/chats/1/messages", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		req.Equal(http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject an invalid token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/chats/1/messages", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		req.Equal(http.StatusUnauthorized, w.Code)
	})
}

// BenchmarkHashPassword measures the CPU/RAM impact of the Argon2id parameters
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
