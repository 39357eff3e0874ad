package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin marks accounts allowed on admin routes
const RoleAdmin = "admin"

// ErrInvalidCredentials is returned for unknown users and wrong passwords alike
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUserExists is returned when the username or email is taken
var ErrUserExists = errors.New("username or email already exists")

// User is the public view of an account
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Claims is the verified identity carried by a token
type Claims struct {
	ID       int
	Username string
	Role     string
}

// IsAdmin reports whether the identity may use admin routes
func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Module issues and validates JWTs backed by the users table
type Module struct {
	db        *pgxpool.Pool
	jwtSecret string
}

// NewModule creates an auth module
func NewModule(db *pgxpool.Pool, jwtSecret string) *Module {
	return &Module{db: db, jwtSecret: jwtSecret}
}

// Signup creates a user and returns a signed token with the new identity
func (m *Module) Signup(ctx context.Context, username, email, password string) (string, *User, error) {
	var exists bool
	err := m.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)", username, email).
		Scan(&exists)
	if err != nil {
		return "", nil, err
	}
	if exists {
		return "", nil, ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	user := &User{Username: username, Email: email}
	err = m.db.QueryRow(ctx,
		"INSERT INTO users (username, email, password) VALUES ($1, $2, $3) RETURNING id, role",
		username, email, string(hashed)).
		Scan(&user.ID, &user.Role)
	if err != nil {
		return "", nil, err
	}

	token, err := m.generateJWT(user)
	return token, user, err
}

// Login authenticates by email and returns a signed token
func (m *Module) Login(ctx context.Context, email, password string) (string, *User, error) {
	user := &User{Email: email}
	var hash string
	err := m.db.QueryRow(ctx,
		"SELECT id, username, role, password FROM users WHERE email = $1", email).
		Scan(&user.ID, &user.Username, &user.Role, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := m.generateJWT(user)
	return token, user, err
}

func (m *Module) generateJWT(user *User) (string, error) {
	claims := jwt.MapClaims{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.jwtSecret))
}

// ValidateToken verifies a token and extracts its identity
func (m *Module) ValidateToken(token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil {
		return Claims{}, err
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}

	idFloat, ok := mapClaims["id"].(float64)
	if !ok {
		return Claims{}, errors.New("invalid id in token")
	}
	username, _ := mapClaims["username"].(string)
	role, _ := mapClaims["role"].(string)
	return Claims{ID: int(idFloat), Username: username, Role: role}, nil
}
