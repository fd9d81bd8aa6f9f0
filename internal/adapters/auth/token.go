// Package auth emite y verifica los tokens de admin.
//
// Un token es "<subject>.<firma>", con la firma = HMAC-SHA256 del subject bajo
// un secreto del servidor, en base64 URL-safe. Los emite quien tiene el
// secreto (comando `ledger token`) y se comparan con hmac.Equal; el secreto
// nunca viaja con la petición.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/alejandrodnm/betledger/internal/domain"
)

// TokenAuthorizer implementa ports.Authorizer con tokens HMAC.
type TokenAuthorizer struct {
	secret []byte
}

// NewTokenAuthorizer crea el authorizer. Con secreto vacío rechaza todo.
func NewTokenAuthorizer(secret string) *TokenAuthorizer {
	return &TokenAuthorizer{secret: []byte(secret)}
}

// IssueToken firma subject. El subject identifica al admin en los logs.
func (a *TokenAuthorizer) IssueToken(subject string) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("auth.IssueToken: no secret configured")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" || strings.Contains(subject, ".") {
		return "", fmt.Errorf("auth.IssueToken: invalid subject %q", subject)
	}
	return subject + "." + a.sign(subject), nil
}

// Authorize valida un token emitido por IssueToken.
func (a *TokenAuthorizer) Authorize(_ context.Context, credential string) error {
	if len(a.secret) == 0 {
		return fmt.Errorf("%w: admin secret not configured", domain.ErrUnauthorized)
	}
	subject, sig, ok := strings.Cut(credential, ".")
	if !ok || subject == "" || sig == "" {
		return fmt.Errorf("%w: malformed token", domain.ErrUnauthorized)
	}
	if !hmac.Equal([]byte(sig), []byte(a.sign(subject))) {
		return fmt.Errorf("%w: bad signature for %q", domain.ErrUnauthorized, subject)
	}
	return nil
}

// Subject extrae el subject de un token sin validarlo. Solo para logs.
func Subject(credential string) string {
	subject, _, _ := strings.Cut(credential, ".")
	return subject
}

func (a *TokenAuthorizer) sign(subject string) string {
	h := hmac.New(sha256.New, a.secret)
	h.Write([]byte(subject))
	return strings.TrimRight(base64.URLEncoding.EncodeToString(h.Sum(nil)), "=")
}
