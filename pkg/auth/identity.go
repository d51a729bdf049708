package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/0x360x36/miauhome.cl/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Identity is the bearer credential of an authenticated shopper.
type Identity struct {
	Token     string
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the credential has an expiry in the past.
func (i *Identity) Expired(now time.Time) bool {
	if i == nil {
		return true
	}
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Claims mirrors the access token issued by the store backend.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Parser turns raw bearer tokens into identities.
type Parser struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewParser builds a parser. With an empty secret the signature is not checked.
func NewParser(secret, issuer string) *Parser {
	return &Parser{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// Parse decodes tokenString and returns the identity it carries.
func (p *Parser) Parse(tokenString string) (*Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token")
	}

	claims := &Claims{}
	var err error
	if len(p.secret) == 0 {
		parser := jwt.NewParser(jwt.WithoutClaimsValidation())
		_, _, err = parser.ParseUnverified(tokenString, claims)
	} else {
		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
			jwt.WithTimeFunc(p.now),
		}
		if p.issuer != "" {
			opts = append(opts, jwt.WithIssuer(p.issuer))
		}
		_, err = jwt.NewParser(opts...).ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return p.secret, nil
		})
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "bearer token expired")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid bearer token")
	}
	// the unverified path skips claim validation, so the issuer is checked here
	if p.issuer != "" && claims.Issuer != p.issuer {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token issuer mismatch")
	}

	identity := &Identity{Token: tokenString, Subject: claims.Subject}
	if identity.Subject == "" {
		identity.Subject = claims.Email
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	if identity.Expired(p.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token expired")
	}
	return identity, nil
}
