package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"swiftpay/internal/domain"
	pkgerrors "swiftpay/pkg/errors"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

const testSecret = "test-secret-not-for-production"

func activeUser(username, password string, role domain.Role) *domain.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &domain.User{
		ID:            uuid.New(),
		Username:      username,
		PasswordHash:  string(hash),
		FullName:      "Test User",
		Role:          role,
		AccountNumber: "1234567890",
		IsActive:      true,
	}
}

// --- Tests ---

func TestLogin_Success(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, testSecret, time.Hour)

	ctx := context.Background()
	user := activeUser("alice_lee", "Str0ng!pass", domain.RoleCustomer)

	mockRepo.On("FindByUsername", ctx, "alice_lee").Return(user, nil)
	mockRepo.On("Update", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.LastLogin != nil
	})).Return(nil)

	resp, err := service.Login(ctx, &LoginRequest{Username: "alice_lee", Password: "Str0ng!pass"})

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, user.ID, resp.Principal.ID)
	assert.Equal(t, domain.RoleCustomer, resp.Principal.Role)

	// The token carries the claims the middleware resolves a principal from.
	token, err := jwt.Parse(resp.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	assert.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID.String(), claims["user_id"])
	assert.Equal(t, "customer", claims["role"])
	assert.Equal(t, "1234567890", claims["account_number"])
}

func TestLogin_WrongPassword(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, testSecret, time.Hour)

	ctx := context.Background()
	user := activeUser("alice_lee", "Str0ng!pass", domain.RoleCustomer)
	mockRepo.On("FindByUsername", ctx, "alice_lee").Return(user, nil)

	_, err := service.Login(ctx, &LoginRequest{Username: "alice_lee", Password: "wrong"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestLogin_UnknownUser(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, testSecret, time.Hour)

	ctx := context.Background()
	mockRepo.On("FindByUsername", ctx, "nobody_here").Return(nil, pkgerrors.ErrUserNotFound)

	// Unknown users and bad passwords are indistinguishable to the caller.
	_, err := service.Login(ctx, &LoginRequest{Username: "nobody_here", Password: "whatever"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestLogin_InactiveUser(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, testSecret, time.Hour)

	ctx := context.Background()
	user := activeUser("alice_lee", "Str0ng!pass", domain.RoleCustomer)
	user.IsActive = false
	mockRepo.On("FindByUsername", ctx, "alice_lee").Return(user, nil)

	_, err := service.Login(ctx, &LoginRequest{Username: "alice_lee", Password: "Str0ng!pass"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestLogin_MalformedUsernameNeverHitsStore(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, testSecret, time.Hour)

	_, err := service.Login(context.Background(), &LoginRequest{Username: "Robert'); DROP--", Password: "x"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
	mockRepo.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything)
}
