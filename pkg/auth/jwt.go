package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("token carries an unknown role")
)

// Claims identify the caregiver acting on a request.
type Claims struct {
	CaregiverID uuid.UUID  `json:"caregiver_id"`
	Role        model.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() model.Actor {
	return model.Actor{ID: c.CaregiverID, Role: c.Role}
}

type JWTService interface {
	GenerateAccessToken(caregiver *model.Caregiver) (string, error)
	ValidateToken(token string) (*Claims, error)
}

type jwtService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewJWTService(secret string, expiry time.Duration) JWTService {
	return &jwtService{secret: []byte(secret), expiry: expiry, now: time.Now}
}

func (s *jwtService) GenerateAccessToken(caregiver *model.Caregiver) (string, error) {
	if !caregiver.Role.Valid() {
		return "", ErrInvalidRole
	}
	now := s.now()
	claims := Claims{
		CaregiverID: caregiver.ID,
		Role:        caregiver.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caregiver.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *jwtService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.CaregiverID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing caregiver_id", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return claims, nil
}
