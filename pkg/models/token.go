package models

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

func (k TokenKind) Valid() bool {
	return k == TokenAccess || k == TokenRefresh
}

// CookieName is the cookie slot a token of this kind travels in.
func (k TokenKind) CookieName() string {
	return string(k) + "_token"
}
