package security

import (
	"errors"
	"time"

	"dark_api/internal/domain/model"
	"dark_api/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

func GenerateToken(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
		"exp":      time.Now().Add(config.AppConfig.JWTExp).Unix(),
		"iat":      time.Now().Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func GetUsernameFromClaims(claims jwt.MapClaims) (string, error) {
	name, ok := claims["username"].(string)
	if !ok || name == "" {
		return "", errors.New("username claim is missing or not a string")
	}
	return name, nil
}

func GetUserRoleFromClaims(claims jwt.MapClaims) (model.Role, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return model.Role(role), nil
}
