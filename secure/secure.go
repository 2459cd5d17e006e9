package secure

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/acme/autocert"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

const (
	AlgorithmRS256 = "RS256"
	AlgorithmHS256 = "HS256"
)

// AuthConfig provides the settings for ID token verification
type AuthConfig struct {
	ClientID      string // expected audience (required)
	Issuer        string // expected issuer (optional)
	KeyFile       string // PEM encoded RSA public key for RS256 tokens
	Secret        string // shared secret for HS256 tokens, used when KeyFile is empty
	BlocklistFile string // revoked tokens, one per line (optional)
}

// idTokenClaims are the claims read from a verified ID token
type idTokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks bearer ID tokens on incoming requests
type TokenVerifier struct {
	parser        *jwt.Parser
	key           interface{}
	blocklist     *TokenBlocklist
	blocklistFile string
}

// NewTokenVerifier loads the verification key and builds the token parser.
func NewTokenVerifier(config AuthConfig) (*TokenVerifier, error) {
	if config.ClientID == "" {
		return nil, errors.New("client id is required for token verification")
	}

	var key interface{}
	var method string
	switch {
	case config.KeyFile != "":
		pem, err := os.ReadFile(config.KeyFile)
		if err != nil {
			return nil, wrap.Errorf(err, "failed to read token key %s", config.KeyFile)
		}
		if key, err = jwt.ParseRSAPublicKeyFromPEM(pem); err != nil {
			return nil, wrap.Errorf(err, "token key %s is not an RSA public key", config.KeyFile)
		}
		method = AlgorithmRS256
	case config.Secret != "":
		key = []byte(config.Secret)
		method = AlgorithmHS256
	default:
		return nil, errors.New("a key file or secret is required for token verification")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithAudience(config.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if config.Issuer != "" {
		options = append(options, jwt.WithIssuer(config.Issuer))
	}

	blocklist := NewTokenBlocklist()
	if config.BlocklistFile != "" {
		if err := blocklist.LoadTokensFromFile(config.BlocklistFile); err != nil {
			return nil, err
		}
		log.Infof("loaded %d revoked tokens", blocklist.Count())
	}

	return &TokenVerifier{jwt.NewParser(options...), key, blocklist, config.BlocklistFile}, nil
}

// ReloadBlocklist rereads the revoked token file.  On failure the current
// blocklist stays in effect.  Without a configured file it does nothing.
func (v *TokenVerifier) ReloadBlocklist() error {
	if v.blocklistFile == "" {
		return nil
	}
	if err := v.blocklist.LoadTokensFromFile(v.blocklistFile); err != nil {
		return err
	}
	log.Infof("reloaded %d revoked tokens", v.blocklist.Count())
	return nil
}

// AuthMiddleware rejects requests without a valid bearer ID token.  A
// missing token is answered with 403 and an invalid one with 401.
func (v *TokenVerifier) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			l := len("Bearer")
			if len(auth) <= l+1 || auth[:l] != "Bearer" {
				return &echo.HTTPError{
					Code:    http.StatusForbidden,
					Message: "Not authenticated",
				}
			}
			raw := auth[l+1:]

			if v.blocklist.IsBlocked(raw) {
				return &echo.HTTPError{
					Code:     http.StatusUnauthorized,
					Message:  "token has been revoked",
					Internal: fmt.Errorf("blocked token used"),
				}
			}

			claims := &idTokenClaims{}
			token, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return v.key, nil
			})
			if err != nil || !token.Valid {
				return &echo.HTTPError{
					Code:     http.StatusUnauthorized,
					Message:  "invalid or expired jwt",
					Internal: err,
				}
			}

			// store user information for handlers and the access log
			c.Set("user", token)
			c.Set("email", claims.Email)

			return next(c)
		}
	}
}

// ServerConfig selects how the server listens
type ServerConfig struct {
	Port     int
	SSLCert  string // filename for SSL certificate (should be .PEM file)
	SSLKey   string // filename for SSL key file (should be .PEM file)
	AutoTLS  bool   // fetch certificates from Let's Encrypt when no PEM files are given
	Hostname string // host allowed to request ACME certificates
}

// StartServer blocks serving e over https with the given certificate, over
// https with ACME certificates, or over plain http.
func StartServer(e *echo.Echo, config ServerConfig) error {
	addr := ":" + strconv.Itoa(config.Port)

	switch {
	case config.SSLCert != "" && config.SSLKey != "":
		return e.StartTLS(addr, config.SSLCert, config.SSLKey)
	case config.AutoTLS:
		e.AutoTLSManager.Cache = autocert.DirCache("./cache")
		if config.Hostname != "" {
			e.AutoTLSManager.HostPolicy = autocert.HostWhitelist(config.Hostname)
		}
		return e.StartAutoTLS(addr)
	default:
		return e.Start(addr)
	}
}
