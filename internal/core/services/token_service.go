package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

// actorClaims is the token layout issued by the identity provider.
type actorClaims struct {
	Name    string `json:"name,omitempty"`
	Admin   bool   `json:"admin,omitempty"`
	Creator bool   `json:"creator,omitempty"`
	jwt.RegisteredClaims
}

type tokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) ports.TokenService {
	return &tokenService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (s *tokenService) Verify(token string) (domain.Actor, error) {
	if token == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}

	var claims actorClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return domain.Actor{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return domain.Actor{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}

	return domain.Actor{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		IsAdmin:     claims.Admin,
		CanCreate:   claims.Creator || claims.Admin,
	}, nil
}

func (s *tokenService) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if actor.ID == "" {
		return "", errors.New("actor id is required")
	}

	now := s.now()
	claims := actorClaims{
		Name:    actor.DisplayName,
		Admin:   actor.IsAdmin,
		Creator: actor.CanCreate,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
