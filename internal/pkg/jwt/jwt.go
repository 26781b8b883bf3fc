package jwt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrAdminRoleRequired  = errors.New("admin role required")
	ErrEmployeeIDRequired = errors.New("employee_id is required")
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// Claims identify the employee a request acts for.
type Claims struct {
	EmployeeID string
	Role       Role
}

func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type Service interface {
	GenerateAccessToken(employeeID string, role Role) (token string, expiresAt int64, err error)
	ParseAccessToken(tokenString string) (Claims, error)
	JWTAuth() *jwtauth.JWTAuth
	RevokeToken(token string)
	IsTokenRevoked(token string) bool
}

type JWTService struct {
	accessTokenExpirationTime time.Duration
	tokenAuth                 *jwtauth.JWTAuth
	revokedTokens             map[string]int64
	mu                        sync.RWMutex
	now                       func() time.Time
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime time.Duration) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		revokedTokens:             make(map[string]int64),
		now:                       time.Now,
	}
}

func (j *JWTService) GenerateAccessToken(employeeID string, role Role) (token string, expiresAt int64, err error) {
	if employeeID == "" {
		return "", 0, ErrEmployeeIDRequired
	}
	if !role.IsValid() {
		role = RoleEmployee
	}
	now := j.now()
	expiresAt = now.Add(j.accessTokenExpirationTime).Unix()

	claims := map[string]interface{}{
		"employee_id": employeeID,
		"role":        string(role),
		"type":        "access",
		"iat":         now.Unix(),
		"exp":         expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// ParseAccessToken verifies tokenString and returns its claims.
func (j *JWTService) ParseAccessToken(tokenString string) (Claims, error) {
	if j.IsTokenRevoked(tokenString) {
		return Claims{}, ErrTokenRevoked
	}
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claimsFromMap(claims)
}

func (j *JWTService) RevokeToken(token string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.revokedTokens[token] = j.now().Unix()
}

func (j *JWTService) IsTokenRevoked(token string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, revoked := j.revokedTokens[token]
	return revoked
}

// ClaimsFromContext reads the claims verified by jwtauth.Verifier.
func ClaimsFromContext(ctx context.Context) (Claims, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claimsFromMap(claims)
}

func claimsFromMap(claims map[string]interface{}) (Claims, error) {
	if tokenType, _ := claims["type"].(string); tokenType != "access" {
		return Claims{}, ErrInvalidToken
	}
	employeeID, _ := claims["employee_id"].(string)
	if employeeID == "" {
		return Claims{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if !Role(role).IsValid() {
		return Claims{}, ErrInvalidToken
	}
	return Claims{EmployeeID: employeeID, Role: Role(role)}, nil
}
