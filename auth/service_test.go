package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	users     map[string]User
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]User)}
}

func (f *fakeRepo) CreateUser(_ context.Context, params CreateUserParams) (User, error) {
	if f.createErr != nil {
		return User{}, f.createErr
	}
	if _, exists := f.users[params.Email]; exists {
		return User{}, ErrDuplicateEmail
	}
	user := User{
		ID:           "user-" + params.Email,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
	}
	f.users[params.Email] = user
	return user, nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (User, error) {
	user, ok := f.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepo) GetUserByID(_ context.Context, userID string) (User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func TestRegister_WeakPassword(t *testing.T) {
	svc := NewService(newFakeRepo(), "secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		Password: "short",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegister_DefaultsToFreelancer(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "secret")

	user, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ana",
		Email:    "Ana@Example.com",
		Password: "longenough",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != RoleFreelancer {
		t.Errorf("expected freelancer role, got %s", user.Role)
	}
	if user.Email != "ana@example.com" {
		t.Errorf("expected lowercased email, got %s", user.Email)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegister_InvalidRole(t *testing.T) {
	svc := NewService(newFakeRepo(), "secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		Password: "longenough",
		Role:     "admin",
	})
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestLogin_RoundTrip(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "secret")

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Bo",
		Email:    "bo@example.com",
		Password: "longenough",
		Role:     RoleOwner,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := svc.Login(context.Background(), LoginRequest{
		Email:    "bo@example.com",
		Password: "longenough",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected non-empty token")
	}

	userID, role, err := svc.VerifyToken(result.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("expected user id %s, got %s", result.User.ID, userID)
	}
	if role != RoleOwner {
		t.Errorf("expected owner role, got %s", role)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, "secret")

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Bo",
		Email:    "bo@example.com",
		Password: "longenough",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "bo@example.com",
		Password: "wrongpass",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc := NewService(newFakeRepo(), "secret")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever1",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	svc := NewService(newFakeRepo(), "secret-a")
	other := NewService(newFakeRepo(), "secret-b")

	token, err := svc.GenerateToken("user-1", RoleFreelancer)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, _, err := other.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
