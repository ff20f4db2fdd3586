package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campusdrive/internal/common"
	"campusdrive/internal/domain/actor"
)

// Claims carries the caller identity issued by the upstream identity service.
type Claims struct {
	Role      string `json:"role"`
	OrgID     string `json:"org_id,omitempty"`
	CollegeID string `json:"college_id,omitempty"`
	jwt.RegisteredClaims
}

type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

// Generate signs an HS256 token for a; used by tooling and tests.
func (p *JWTProvider) Generate(a actor.Actor, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Role:      string(a.Role),
		OrgID:     a.OrgID.String(),
		CollegeID: a.CollegeID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies the token and resolves it to an actor.
func (p *JWTProvider) Parse(tokenString string) (actor.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return actor.Actor{}, err
	}
	id, err := common.ParseUUID(claims.Subject)
	if err != nil {
		return actor.Actor{}, errors.New("invalid subject")
	}
	role, ok := actor.ParseRole(claims.Role)
	if !ok {
		return actor.Actor{}, errors.New("unknown role")
	}
	a := actor.Actor{ID: id, Role: role}
	switch role {
	case actor.RoleCompany:
		a.OrgID, err = common.ParseUUID(strings.TrimSpace(claims.OrgID))
		if err != nil {
			return actor.Actor{}, errors.New("company token without org_id")
		}
	case actor.RoleCollege:
		a.CollegeID, err = common.ParseUUID(strings.TrimSpace(claims.CollegeID))
		if err != nil {
			return actor.Actor{}, errors.New("college token without college_id")
		}
	}
	return a, nil
}
