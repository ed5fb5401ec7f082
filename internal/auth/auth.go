package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeqswap/exchange/internal/db"
	"github.com/zeqswap/exchange/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles user registration and authentication. Each registered
// user is assigned a fresh exchange address; JWTs carry it so handlers can
// act on the caller's ledger state.
type AuthService struct {
	DB     *db.DB
	secret []byte
}

// NewAuthService creates a new auth service
func NewAuthService(database *db.DB, secret string) *AuthService {
	return &AuthService{DB: database, secret: []byte(secret)}
}

// NewAddress generates an opaque account address. Addresses identify ledger
// entries; they are not signing keys.
func NewAddress() (models.Address, error) {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		return models.ZeroAddress, fmt.Errorf("failed to generate address: %w", err)
	}
	return models.Address("0x" + hex.EncodeToString(b[:])), nil
}

// Register creates a new user with a hashed password and a fresh address
func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	if len(username) > 50 {
		return nil, fmt.Errorf("username too long (max 50 characters)")
	}
	if len(password) > 100 {
		return nil, fmt.Errorf("password too long (max 100 characters)")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	address, err := NewAddress()
	if err != nil {
		return nil, err
	}

	user, err := s.DB.CreateUser(ctx, username, string(hashedPassword), address)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and generates a JWT
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.DB.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"address":  string(user.Address),
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// GetUserFromToken extracts the caller's address from a JWT
func (s *AuthService) GetUserFromToken(tokenString string) (models.Address, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return models.ZeroAddress, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.ZeroAddress, fmt.Errorf("invalid token")
	}
	address, ok := claims["address"].(string)
	if !ok || address == "" {
		return models.ZeroAddress, fmt.Errorf("token missing address claim")
	}
	return models.Address(address), nil
}
