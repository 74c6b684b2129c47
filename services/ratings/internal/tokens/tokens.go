package tokens

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/store-rating/internal/platform/auth"
)

type Service struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

// NewAccessToken signs an HS256 token whose claims auth.JWTVerifier accepts.
func (s Service) NewAccessToken(userID, role, email string, now time.Time) (string, time.Time, error) {
	if len(s.Secret) == 0 {
		return "", time.Time{}, errors.New("missing jwt secret")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(s.AccessTokenTTL)

	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:  role,
		Email: email,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verifier returns the verifier for tokens issued by s.
func (s Service) Verifier() auth.JWTVerifier {
	return auth.JWTVerifier{Secret: s.Secret}
}
