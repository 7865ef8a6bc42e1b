package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims is the JWT payload attached to authenticated requests.
// The engines never read it directly; handlers unpack it into explicit
// actor parameters.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID       uint   `json:"user_id"`
	Phone        string `json:"phone"`
	Role         string `json:"role"`
	IsAgent      bool   `json:"is_agent"`
	TokenVersion int    `json:"token_version"`
}
