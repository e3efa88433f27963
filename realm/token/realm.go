package token

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authservice"
	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

// KeyToken is the credentials key holding the bearer token.
const KeyToken = "token"

// SigningMethod selects the token algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// Config configures a [Realm].
type Config struct {
	Method SigningMethod
	// SigningKey is the HS256 secret or the Ed25519 private key (raw or PEM).
	// It is required to issue tokens, and for HS256 also to verify them.
	SigningKey []byte
	// VerifyKey is the Ed25519 public key (raw or PEM).
	VerifyKey []byte
	KeyID     string

	Issuer   string
	Audience string
	// TTL is the lifetime of issued tokens.
	TTL    time.Duration
	Leeway time.Duration

	Clock clock.Clock
}

// Claims is the token payload.
type Claims struct {
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Realm verifies and issues principal tokens.
type Realm struct {
	config    Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	parser    *jwt.Parser
}

// New validates cfg and returns a realm.
func New(cfg Config) (*Realm, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.TTL == 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	r := &Realm{config: cfg}

	switch cfg.Method {
	case MethodHS256:
		if len(cfg.SigningKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
		r.method = jwt.SigningMethodHS256
		r.signKey = cfg.SigningKey
		r.verifyKey = cfg.SigningKey
	case MethodEd25519:
		r.method = jwt.SigningMethodEdDSA
		if len(cfg.SigningKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.SigningKey)
			if err != nil {
				return nil, err
			}
			r.signKey = priv
			r.verifyKey = priv.Public()
		}
		if len(cfg.VerifyKey) > 0 {
			pub, err := parseEdPublicKey(cfg.VerifyKey)
			if err != nil {
				return nil, err
			}
			r.verifyKey = pub
		}
		if r.verifyKey == nil {
			return nil, errors.New("ed25519 requires a verify or signing key")
		}
	default:
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Method)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{r.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Clock.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	r.parser = jwt.NewParser(options...)

	return r, nil
}

// Issue signs a token for p.
func (r *Realm) Issue(p authservice.Principal) (string, error) {
	if r.signKey == nil {
		return "", errors.New("realm has no signing key")
	}
	if p.IsZero() {
		return "", errors.New("principal id required")
	}

	now := r.config.Clock.Now()
	claims := Claims{
		Roles:       p.Roles(),
		Permissions: p.Permissions(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID(),
			Issuer:    r.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(r.config.TTL)),
		},
	}
	if r.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{r.config.Audience}
	}

	token := jwt.NewWithClaims(r.method, claims)
	if r.config.KeyID != "" {
		token.Header["kid"] = r.config.KeyID
	}
	return token.SignedString(r.signKey)
}

// Parse validates a token and returns its claims.
func (r *Realm) Parse(raw string) (*Claims, error) {
	token, err := r.parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if r.config.KeyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != r.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return r.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Verify resolves the principal carried by the "token" credential.
func (r *Realm) Verify(ctx context.Context, creds authservice.Credentials) (authservice.Principal, error) {
	if err := ctx.Err(); err != nil {
		return authservice.Principal{}, err
	}

	raw, ok := creds.String(KeyToken)
	if !ok || raw == "" {
		return authservice.Principal{}, authservice.ErrInvalidCredentials
	}
	claims, err := r.Parse(raw)
	if err != nil {
		return authservice.Principal{}, fmt.Errorf("%w: %v", authservice.ErrInvalidCredentials, err)
	}

	return authservice.NewPrincipal(claims.Subject, claims.Roles, claims.Permissions), nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

var _ authservice.CredentialVerifier = (*Realm)(nil)
