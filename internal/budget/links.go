package budget

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const linkIssuer = "stockflow"

// DefaultLinkTTL bounds how long a signed decision link stays valid.
const DefaultLinkTTL = 30 * 24 * time.Hour

// LinkConfig configures decision link generation.
type LinkConfig struct {
	BaseURL string
	Secret  string
	TTL     time.Duration
	Clock   func() time.Time
}

// decisionClaims binds a token to one request and one decision.
type decisionClaims struct {
	jwt.RegisteredClaims
	Decision Decision `json:"dec"`
}

// Links builds and verifies decision URLs of the form
// <base>/approval?request_id=<id>&decision=APPROVE|REJECT. With a secret
// configured a signed token parameter is appended and required on verify.
type Links struct {
	base   string
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewLinks constructs Links.
func NewLinks(cfg LinkConfig) *Links {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultLinkTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Links{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		clock:  cfg.Clock,
	}
}

// Signed reports whether links carry a token.
func (l *Links) Signed() bool {
	return len(l.secret) > 0
}

// URL returns the decision link for request id.
func (l *Links) URL(id uuid.UUID, d Decision) (string, error) {
	raw := "request_id=" + url.QueryEscape(id.String()) + "&decision=" + url.QueryEscape(string(d))
	if l.Signed() {
		token, err := l.sign(id, d)
		if err != nil {
			return "", err
		}
		raw += "&token=" + url.QueryEscape(token)
	}
	return l.base + "/approval?" + raw, nil
}

func (l *Links) sign(id uuid.UUID, d Decision) (string, error) {
	now := l.clock()
	claims := decisionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    linkIssuer,
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
		},
		Decision: d,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("budget: sign decision link: %w", err)
	}
	return signed, nil
}

// Verify checks token against the request id and decision. It is a no-op
// when links are unsigned.
func (l *Links) Verify(id uuid.UUID, d Decision, token string) error {
	if !l.Signed() {
		return nil
	}
	if token == "" {
		return fmt.Errorf("%w: token missing", ErrInvalidLink)
	}
	parsed, err := jwt.ParseWithClaims(token, &decisionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return l.secret, nil
	}, jwt.WithIssuer(linkIssuer), jwt.WithTimeFunc(l.clock))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	claims, ok := parsed.Claims.(*decisionClaims)
	if !ok || !parsed.Valid {
		return fmt.Errorf("%w: invalid claims", ErrInvalidLink)
	}
	if claims.Subject != id.String() || claims.Decision != d {
		return fmt.Errorf("%w: token does not match request", ErrInvalidLink)
	}
	return nil
}
