package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shashiranjanraj/ferremas/config"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
	TokenReset   = "reset"
)

// ErrWrongTokenType is returned when a refresh token is presented as an
// access token or the other way around.
var ErrWrongTokenType = errors.New("auth: wrong token type")

// Claims holds the typed JWT payload. Role and the staff scope are resolved
// once at login and trusted for the token lifetime.
type Claims struct {
	UserID      uint   `json:"user_id"`
	Role        string `json:"role"`
	BranchID    uint   `json:"branch_id,omitempty"`
	WarehouseID uint   `json:"warehouse_id,omitempty"`
	Type        string `json:"typ"`
	// Fingerprint ties a reset token to the password hash it was issued
	// against.
	Fingerprint string `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

// Subject is the identity embedded into both tokens of a pair.
type Subject struct {
	UserID      uint
	Role        string
	BranchID    uint
	WarehouseID uint
}

// Pair is an access/refresh token couple.
type Pair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	RefreshID        string    `json:"-"`
}

func secret() []byte {
	return []byte(config.JWTSecret())
}

// IssuePair signs a fresh access and refresh token for s.
func IssuePair(s Subject) (Pair, error) {
	now := time.Now()
	accessExp := now.Add(config.AccessTokenTTL())
	refreshExp := now.Add(config.RefreshTokenTTL())

	access, _, err := sign(s, TokenAccess, now, accessExp)
	if err != nil {
		return Pair{}, err
	}
	refresh, jti, err := sign(s, TokenRefresh, now, refreshExp)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		Access:           access,
		Refresh:          refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		RefreshID:        jti,
	}, nil
}

func sign(s Subject, typ string, now, exp time.Time) (string, string, error) {
	jti := uuid.NewString()
	claims := Claims{
		UserID:      s.UserID,
		Role:        s.Role,
		BranchID:    s.BranchID,
		WarehouseID: s.WarehouseID,
		Type:        typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
	return signed, jti, err
}

// ValidateToken parses and validates a JWT string of any type.
func ValidateToken(t string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(t, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return secret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// ValidateAccess accepts only access tokens.
func ValidateAccess(t string) (*Claims, error) {
	return validateTyped(t, TokenAccess)
}

// ValidateRefresh accepts only refresh tokens.
func ValidateRefresh(t string) (*Claims, error) {
	return validateTyped(t, TokenRefresh)
}

func validateTyped(t, typ string) (*Claims, error) {
	claims, err := ValidateToken(t)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// IssueReset signs a password reset token for userID. It stops validating
// once the password behind passwordHash changes, which makes it single use.
func IssueReset(userID uint, passwordHash string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(config.PasswordResetTTL())
	claims := Claims{
		UserID:      userID,
		Type:        TokenReset,
		Fingerprint: fingerprint(passwordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
	return signed, exp, err
}

// ValidateReset accepts only reset tokens. Check the result with BoundTo
// before trusting it.
func ValidateReset(t string) (*Claims, error) {
	return validateTyped(t, TokenReset)
}

// BoundTo reports whether a reset token was issued against passwordHash.
func (c *Claims) BoundTo(passwordHash string) bool {
	return c.Fingerprint != "" && hmac.Equal([]byte(c.Fingerprint), []byte(fingerprint(passwordHash)))
}

func fingerprint(passwordHash string) string {
	mac := hmac.New(sha256.New, secret())
	mac.Write([]byte(passwordHash))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}

// HashPassword returns a bcrypt hash of the plain-text password.
func HashPassword(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a bcrypt hash against the plain-text candidate.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
