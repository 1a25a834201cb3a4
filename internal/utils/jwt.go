package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoomTokenClaims are the claims in a room access token issued by the
// create-or-fetch room endpoint.
type RoomTokenClaims struct {
	RoomID string `json:"roomId"`
	jwt.RegisteredClaims
}

// GenerateRoomToken mints a token granting access to roomID for 24 hours.
func GenerateRoomToken(roomID string, secret []byte) (string, error) {
	claims := RoomTokenClaims{
		RoomID: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateRoomToken parses and verifies a room access token.
func ValidateRoomToken(tokenString string, secret []byte) (*RoomTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RoomTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*RoomTokenClaims)
	if !ok || claims.RoomID == "" {
		return nil, errors.New("invalid room token claims")
	}
	return claims, nil
}
