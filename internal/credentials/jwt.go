package credentials

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/koeppj/mcp-server-box/internal/config"
	"github.com/youmark/pkcs8"
	"golang.org/x/oauth2"
)

const (
	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime  = 45 * time.Second
	maxTokenBody       = 1 << 20
)

// assertionClaims are the claims of the Box JWT grant assertion.
type assertionClaims struct {
	BoxSubType string `json:"box_sub_type"`
	jwt.RegisteredClaims
}

// parsePrivateKey decodes the PEM encoded RSA key, decrypting it with
// passphrase when it is an encrypted PKCS#8 key.
func parsePrivateKey(pemKey, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, fmt.Errorf("no PEM data found")
	}

	switch block.Type {
	case "ENCRYPTED PRIVATE KEY":
		return pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, []byte(passphrase))
	case "PRIVATE KEY":
		return pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes)
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// jwtSigner builds signed grant assertions for one JWT credential.
type jwtSigner struct {
	creds    JWTCredentials
	key      *rsa.PrivateKey
	tokenURL string
	now      func() time.Time
}

func newJWTSigner(creds JWTCredentials, tokenURL string, now func() time.Time) (*jwtSigner, error) {
	key, err := parsePrivateKey(creds.PrivateKey, creds.Passphrase)
	if err != nil {
		return nil, &ConfigurationError{
			Mode:   config.UpstreamAuthJWT,
			Reason: fmt.Sprintf("failed to load private key: %v", err),
		}
	}
	return &jwtSigner{creds: creds, key: key, tokenURL: tokenURL, now: now}, nil
}

func (s *jwtSigner) assertion() (string, error) {
	claims := assertionClaims{
		BoxSubType: s.creds.Subject.Type.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.creds.ClientID,
			Subject:   s.creds.Subject.ID,
			Audience:  jwt.ClaimStrings{s.tokenURL},
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(s.now().Add(assertionLifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.creds.PublicKeyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT assertion: %w", err)
	}
	return signed, nil
}

// exchange trades a fresh assertion for an access token.
func (s *jwtSigner) exchange(ctx context.Context, httpClient *http.Client) (*oauth2.Token, error) {
	assertion, err := s.assertion()
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"grant_type":    {jwtBearerGrantType},
		"assertion":     {assertion},
		"client_id":     {s.creds.ClientID},
		"client_secret": {s.creds.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("box JWT token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var payload struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		ExpiresIn        int64  `json:"expires_in"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	// A non-JSON error body still yields a RetrieveError below.
	_ = json.Unmarshal(body, &payload)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &oauth2.RetrieveError{
			Response:         resp,
			Body:             body,
			ErrorCode:        payload.Error,
			ErrorDescription: payload.ErrorDescription,
		}
	}
	if payload.AccessToken == "" {
		return nil, fmt.Errorf("box JWT token response has no access_token")
	}

	token := &oauth2.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
	}
	if payload.ExpiresIn > 0 {
		token.Expiry = s.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return token, nil
}
