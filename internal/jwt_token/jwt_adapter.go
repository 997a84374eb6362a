package jwttoken

import (
	"heritage/pkg/requestcontext"
)

// ToPrincipal projects validated claims onto the request principal.
func ToPrincipal(claims *Claims) requestcontext.Principal {
	return requestcontext.Principal{
		ID:    claims.UserID,
		Email: claims.Email,
		Roles: claims.Roles,
		Slug:  claims.MemberSlug,
	}
}

// JWTServiceAdapter satisfies the auth middleware's validator contract.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (requestcontext.Principal, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return requestcontext.Principal{}, err
	}
	return ToPrincipal(claims), nil
}
