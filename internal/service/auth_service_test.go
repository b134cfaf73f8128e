package service

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-chat/internal/config"
	"github.com/spec-kit/ticket-chat/internal/domain"
)

type fakeUserRepository struct {
	byEmail map[string]*domain.User
	byID    map[string]*domain.User
	nextID  int
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{
		byEmail: make(map[string]*domain.User),
		byID:    make(map[string]*domain.User),
	}
}

func (r *fakeUserRepository) Create(_ context.Context, user *domain.User) error {
	r.nextID++
	user.ID = string(rune('a' + r.nextID))
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user
	return nil
}

func (r *fakeUserRepository) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.byID[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user
	return nil
}

func (r *fakeUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *fakeUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func testAuthConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
		},
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewAuthService(testAuthConfig(), newFakeUserRepository())

	user, token, _, err := svc.RegisterUser(context.Background(), "Alice", "alice@example.com", "hunter22", domain.UserRoleAgent)
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.ID == "" || token == "" {
		t.Fatalf("RegisterUser returned empty id or token: %+v", user)
	}
	if user.Role != domain.UserRoleAgent {
		t.Fatalf("role = %q, want AGENT", user.Role)
	}

	logged, token, _, err := svc.LoginUser(context.Background(), "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("logged in as %q, registered as %q", logged.ID, user.ID)
	}

	resolved, err := svc.TokenManager().Resolve(token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != user.ID {
		t.Fatalf("token subject = %q, want %q", resolved, user.ID)
	}
}

func TestRegisterDefaultsRole(t *testing.T) {
	svc := NewAuthService(testAuthConfig(), newFakeUserRepository())

	user, _, _, err := svc.RegisterUser(context.Background(), "Bob", "bob@example.com", "pw", "")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Role != domain.UserRoleCustomer {
		t.Fatalf("role = %q, want CUSTOMER", user.Role)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewAuthService(testAuthConfig(), newFakeUserRepository())

	if _, _, _, err := svc.RegisterUser(context.Background(), "Alice", "alice@example.com", "pw", ""); err != nil {
		t.Fatalf("first RegisterUser: %v", err)
	}
	if _, _, _, err := svc.RegisterUser(context.Background(), "Mallory", "alice@example.com", "pw", ""); err == nil {
		t.Fatal("duplicate email accepted")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := NewAuthService(testAuthConfig(), newFakeUserRepository())

	if _, _, _, err := svc.RegisterUser(context.Background(), "Alice", "alice@example.com", "right", ""); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, _, _, err := svc.LoginUser(context.Background(), "alice@example.com", "wrong"); err == nil {
		t.Fatal("login with wrong password succeeded")
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(testAuthConfig(), newFakeUserRepository())

	if _, _, _, err := svc.LoginUser(context.Background(), "nobody@example.com", "pw"); err == nil {
		t.Fatal("login for unknown account succeeded")
	}
}
