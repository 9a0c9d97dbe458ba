package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
)

const tokenLeeway = 30 * time.Second

// AuthSettings configures bearer token verification.
type AuthSettings struct {
	Secret string
	Issuer string
}

type authenticator struct {
	secret []byte
	issuer string
}

func newAuthenticator(settings AuthSettings) *authenticator {
	return &authenticator{
		secret: []byte(settings.Secret),
		issuer: strings.TrimSpace(settings.Issuer),
	}
}

func (a *authenticator) enabled() bool {
	return len(a.secret) > 0
}

// viewerID verifies an Authorization header value and returns the token subject as a user id.
func (a *authenticator) viewerID(header string) (int64, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return 0, eris.New("authorization header must carry a bearer token")
	}
	if !a.enabled() {
		return 0, eris.New("token verification is not configured")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	}
	if a.issuer != "" {
		options = append(options, jwt.WithIssuer(a.issuer))
	}

	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, options...)
	if err != nil {
		return 0, eris.Wrap(err, "verifying bearer token")
	}
	if !parsed.Valid {
		return 0, eris.New("bearer token is invalid")
	}

	subject := strings.TrimSpace(claims.Subject)
	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, eris.Errorf("bearer token subject %q is not a user id", subject)
	}

	return id, nil
}
