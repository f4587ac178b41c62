package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/koeppj/mcp-server-box/internal/config"
)

// Setting names as reported in ConfigurationError.
const (
	settingClientID      = config.EnvClientID
	settingClientSecret  = config.EnvClientSecret
	settingSubjectType   = config.EnvSubjectType
	settingSubjectID     = config.EnvSubjectID
	settingPublicKeyID   = config.EnvPublicKeyID
	settingPrivateKey    = config.EnvPrivateKey
	settingPassphrase    = config.EnvPrivateKeyPassphrase
	settingJWTConfigFile = config.EnvJWTConfigFile
)

// Subject is the Box identity a CCG or JWT credential acts as.
type Subject struct {
	Type config.SubjectType
	ID   string
}

// EnterpriseID returns the subject id when it names an enterprise, and ""
// otherwise.
func (s Subject) EnterpriseID() string {
	if s.Type == config.SubjectEnterprise {
		return s.ID
	}
	return ""
}

// UserID returns the subject id when it names a user, and "" otherwise.
func (s Subject) UserID() string {
	if s.Type == config.SubjectUser {
		return s.ID
	}
	return ""
}

func parseSubject(mode config.UpstreamAuthMode, subjectType, subjectID string) (Subject, error) {
	t, err := config.ParseSubjectType(subjectType)
	if err != nil {
		return Subject{}, &ConfigurationError{
			Mode:   mode,
			Reason: fmt.Sprintf("%s must be %q or %q, got %q", settingSubjectType, config.SubjectEnterprise, config.SubjectUser, subjectType),
		}
	}
	return Subject{Type: t, ID: subjectID}, nil
}

// OAuthCredentials are the app credentials for the interactive OAuth flow.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
}

// NewOAuthCredentials validates cfg for the oauth trust model.
func NewOAuthCredentials(cfg config.BoxAPIConfig) (OAuthCredentials, error) {
	if err := requireSettings(config.UpstreamAuthOAuth,
		requirement{settingClientID, cfg.ClientID},
		requirement{settingClientSecret, cfg.ClientSecret},
	); err != nil {
		return OAuthCredentials{}, err
	}
	return OAuthCredentials{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret}, nil
}

// CacheKey returns the token cache key for OAuth.
func (OAuthCredentials) CacheKey() string {
	return CacheKey(config.UpstreamAuthOAuth, Subject{})
}

// ClientCredentials are the settings for Box's client credentials grant.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	Subject      Subject
}

// NewClientCredentials validates cfg for the ccg trust model.
func NewClientCredentials(cfg config.BoxAPIConfig) (ClientCredentials, error) {
	if err := requireSettings(config.UpstreamAuthCCG,
		requirement{settingClientID, cfg.ClientID},
		requirement{settingClientSecret, cfg.ClientSecret},
		requirement{settingSubjectType, cfg.SubjectType},
		requirement{settingSubjectID, cfg.SubjectID},
	); err != nil {
		return ClientCredentials{}, err
	}

	subject, err := parseSubject(config.UpstreamAuthCCG, cfg.SubjectType, cfg.SubjectID)
	if err != nil {
		return ClientCredentials{}, err
	}

	return ClientCredentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Subject:      subject,
	}, nil
}

// CacheKey returns the token cache key for the credential's subject.
func (c ClientCredentials) CacheKey() string {
	return CacheKey(config.UpstreamAuthCCG, c.Subject)
}

// JWTCredentials are the settings for Box's JWT server authentication.
type JWTCredentials struct {
	ClientID     string
	ClientSecret string
	PublicKeyID  string
	// PrivateKey is the PEM encoded, normally encrypted, PKCS#8 key.
	PrivateKey string
	Passphrase string
	Subject    Subject
}

// NewJWTCredentials validates cfg for the jwt trust model. When a JWT config
// file is set it is the source of the app settings, otherwise the inline
// settings are used.
func NewJWTCredentials(cfg config.BoxAPIConfig) (JWTCredentials, error) {
	if cfg.JWTConfigFile != "" {
		return jwtCredentialsFromFile(cfg)
	}

	if err := requireSettings(config.UpstreamAuthJWT,
		requirement{settingClientID, cfg.ClientID},
		requirement{settingClientSecret, cfg.ClientSecret},
		requirement{settingPublicKeyID, cfg.PublicKeyID},
		requirement{settingPrivateKey, cfg.PrivateKey},
		requirement{settingPassphrase, cfg.PrivateKeyPassphrase},
		requirement{settingSubjectType, cfg.SubjectType},
		requirement{settingSubjectID, cfg.SubjectID},
	); err != nil {
		return JWTCredentials{}, err
	}

	subject, err := parseSubject(config.UpstreamAuthJWT, cfg.SubjectType, cfg.SubjectID)
	if err != nil {
		return JWTCredentials{}, err
	}

	return JWTCredentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		PublicKeyID:  cfg.PublicKeyID,
		PrivateKey:   unescapeNewlines(cfg.PrivateKey),
		Passphrase:   cfg.PrivateKeyPassphrase,
		Subject:      subject,
	}, nil
}

// CacheKey returns the token cache key for the credential's subject.
func (c JWTCredentials) CacheKey() string {
	return CacheKey(config.UpstreamAuthJWT, c.Subject)
}

// jwtConfigFile is the JSON config Box generates for a JWT app.
type jwtConfigFile struct {
	BoxAppSettings struct {
		ClientID     string `json:"clientID"`
		ClientSecret string `json:"clientSecret"`
		AppAuth      struct {
			PublicKeyID string `json:"publicKeyID"`
			PrivateKey  string `json:"privateKey"`
			Passphrase  string `json:"passphrase"`
		} `json:"appAuth"`
	} `json:"boxAppSettings"`
	EnterpriseID string `json:"enterpriseID"`
}

func jwtCredentialsFromFile(cfg config.BoxAPIConfig) (JWTCredentials, error) {
	data, err := os.ReadFile(cfg.JWTConfigFile)
	if err != nil {
		reason := fmt.Sprintf("%s could not be read: %v", settingJWTConfigFile, err)
		if errors.Is(err, fs.ErrNotExist) {
			reason = fmt.Sprintf("%s path is not a valid file: %s", settingJWTConfigFile, cfg.JWTConfigFile)
		}
		return JWTCredentials{}, &ConfigurationError{Mode: config.UpstreamAuthJWT, Reason: reason}
	}

	var file jwtConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return JWTCredentials{}, &ConfigurationError{
			Mode:   config.UpstreamAuthJWT,
			Reason: fmt.Sprintf("%s is not a valid Box JWT config: %v", cfg.JWTConfigFile, err),
		}
	}

	subjectType := cfg.SubjectType
	if subjectType == "" {
		subjectType = config.SubjectEnterprise.String()
	}
	subjectID := cfg.SubjectID
	if subjectID == "" {
		subjectID = file.EnterpriseID
	}

	settings := file.BoxAppSettings
	if err := requireSettings(config.UpstreamAuthJWT,
		requirement{"boxAppSettings.clientID", settings.ClientID},
		requirement{"boxAppSettings.clientSecret", settings.ClientSecret},
		requirement{"boxAppSettings.appAuth.publicKeyID", settings.AppAuth.PublicKeyID},
		requirement{"boxAppSettings.appAuth.privateKey", settings.AppAuth.PrivateKey},
		requirement{"boxAppSettings.appAuth.passphrase", settings.AppAuth.Passphrase},
		requirement{settingSubjectID + " or enterpriseID", subjectID},
	); err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Reason = "from " + cfg.JWTConfigFile
		}
		return JWTCredentials{}, err
	}

	subject, err := parseSubject(config.UpstreamAuthJWT, subjectType, subjectID)
	if err != nil {
		return JWTCredentials{}, err
	}

	return JWTCredentials{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		PublicKeyID:  settings.AppAuth.PublicKeyID,
		PrivateKey:   settings.AppAuth.PrivateKey,
		Passphrase:   settings.AppAuth.Passphrase,
		Subject:      subject,
	}, nil
}

// unescapeNewlines turns literal \n sequences, as found in single line
// environment values, into newlines.
func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
