package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/smtp"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrSMTPDisabled = errors.New("SMTP not fully configured")
)

const magicLinkTTL = 15 * time.Minute

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// AuthService issues magic links and the JWTs that scope a user's board session.
type AuthService struct {
	mu         sync.Mutex
	tokens     map[string]magicToken
	jwtSecret  []byte
	tokenTTL   time.Duration
	smtpConfig SMTPConfig
	now        func() time.Time
}

type magicToken struct {
	email   string
	expires time.Time
}

func NewAuthService(secret string, tokenTTL time.Duration, smtpConfig SMTPConfig) *AuthService {
	return &AuthService{
		tokens:     make(map[string]magicToken),
		jwtSecret:  []byte(secret),
		tokenTTL:   tokenTTL,
		smtpConfig: smtpConfig,
		now:        time.Now,
	}
}

// GenerateMagicLink creates a one-time token and emails the link when SMTP is set up.
// The link is also returned so it can be used directly during development.
func (s *AuthService) GenerateMagicLink(email string, baseURL string) (string, error) {
	// Generate a random token
	token, err := generateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	// Store the token, dropping the ones nobody redeemed in time
	s.mu.Lock()
	now := s.now()
	s.purgeExpired(now)
	s.tokens[token] = magicToken{email: email, expires: now.Add(magicLinkTTL)}
	s.mu.Unlock()

	// Create the magic link URL
	magicLink := fmt.Sprintf("%s/api/auth/magic-link?token=%s", baseURL, token)

	// Send the email (if SMTP is configured)
	if s.smtpConfig.Host != "" {
		if err := s.sendMagicLinkEmail(email, magicLink); err != nil {
			log.Warn().Err(err).Str("email", email).Msg("failed to send magic link email")
		}
	}

	return magicLink, nil
}

// VerifyMagicLinkToken consumes a one-time token and returns its email.
func (s *AuthService) VerifyMagicLinkToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tokens[token]
	if !exists {
		return "", ErrInvalidToken
	}

	// Remove the token (one-time use)
	delete(s.tokens, token)

	if s.now().After(t.expires) {
		return "", ErrInvalidToken
	}

	return t.email, nil
}

// purgeExpired must be called with mu held.
func (s *AuthService) purgeExpired(now time.Time) {
	for token, t := range s.tokens {
		if now.After(t.expires) {
			delete(s.tokens, token)
		}
	}
}

// CreateJWT generates a session token for email.
func (s *AuthService) CreateJWT(email string) (string, error) {
	// Create token with claims
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   s.now().Add(s.tokenTTL).Unix(),
	})

	// Sign the token
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// VerifyJWT checks a session token and returns its email.
func (s *AuthService) VerifyJWT(tokenString string) (string, error) {
	// Parse the token
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	// Check if token is valid
	if !token.Valid {
		return "", ErrInvalidToken
	}

	// Extract the email claim
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", fmt.Errorf("%w: email claim missing", ErrInvalidToken)
	}

	return email, nil
}

func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (s *AuthService) sendMagicLinkEmail(to, magicLink string) error {
	if s.smtpConfig.Host == "" || s.smtpConfig.Port == "" ||
		s.smtpConfig.Username == "" || s.smtpConfig.Password == "" {
		return ErrSMTPDisabled
	}

	// Set up authentication information
	auth := smtp.PlainAuth("", s.smtpConfig.Username, s.smtpConfig.Password, s.smtpConfig.Host)

	from := s.smtpConfig.From
	if from == "" {
		from = s.smtpConfig.Username
	}

	// Compose the email
	subject := "Your Kanban board login link"
	body := fmt.Sprintf("Click the link below to open your boards:\n\n%s\n\nThis link expires in %d minutes.",
		magicLink, int(magicLinkTTL.Minutes()))
	msg := []byte(fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s\r\n", to, from, subject, body))

	// Send the email
	addr := s.smtpConfig.Host + ":" + s.smtpConfig.Port
	if err := smtp.SendMail(addr, auth, from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
