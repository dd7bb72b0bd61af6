package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"pasar/internal/models"
	"pasar/internal/store"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration, login, and session tokens over the
// users collection.
type AuthService struct {
	store      store.Store
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
}

// NewAuthService creates a new AuthService.
func NewAuthService(st store.Store, jwtSecret string) *AuthService {
	return &AuthService{
		store:      st,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour, // Token valid for 24 hours
	}
}

// findUser scans the users collection for a matching username or email.
// The document store has no secondary indexes, so uniqueness checks and
// login lookups are linear scans.
func (s *AuthService) findUser(ctx context.Context, match func(models.User) bool) (*models.User, error) {
	var users []models.User
	if err := s.store.List(ctx, "users", &users); err != nil {
		return nil, &PersistenceError{Op: "list users", Err: err}
	}
	for _, u := range users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, nil
}

// RegisterUser registers a new user, hashes their password, and saves
// them to the store.
func (s *AuthService) RegisterUser(ctx context.Context, user *models.User) error {
	existing, err := s.findUser(ctx, func(u models.User) bool { return u.Username == user.Username })
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("username '%s' already taken", user.Username)
	}
	existing, err = s.findUser(ctx, func(u models.User) bool { return u.Email == user.Email })
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("email '%s' already registered", user.Email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword) // Store the hashed password
	if user.Role == "" {
		user.Role = models.RoleBuyer
	}

	id, err := s.store.GenerateID(ctx, "users")
	if err != nil {
		return &PersistenceError{Op: "generate user id", Err: err}
	}
	user.ID = id
	if err := s.store.Set(ctx, store.Join("users", id), user); err != nil {
		return &PersistenceError{Op: "save user", Err: err}
	}
	return nil
}

// LoginUser authenticates a user and returns a JWT token if successful.
func (s *AuthService) LoginUser(ctx context.Context, username, password string) (string, error) {
	user, err := s.findUser(ctx, func(u models.User) bool { return u.Username == username })
	if err != nil {
		return "", err
	}
	if user == nil {
		// It's good practice not to reveal if the username exists or not
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      time.Now().Add(s.tokenDurat).Unix(), // Token expiration time
		"iat":      time.Now().Unix(),                   // Issued at time
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// GetUser retrieves a user record by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.store.Get(ctx, store.Join("users", id), &user); err != nil {
		return nil, fmt.Errorf("user with ID %s not found", id)
	}
	return &user, nil
}

// ValidateToken parses and validates a JWT token, returning the claims
// if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the alg is what we expect:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		log.Printf("Token validation error: %v", err)
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
