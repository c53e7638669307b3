package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sbilibin2017/gw-users/internal/logger"
	"github.com/sbilibin2017/gw-users/internal/models"
	"github.com/segmentio/kafka-go"
	"golang.org/x/crypto/bcrypt"
)

//go:generate mockgen -source=account.go -destination=mock_account.go -package=services

// Error variables
var (
	ErrDuplicateEmail     = models.ErrEmailAlreadyExists
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("user is not verified")
	ErrCodeNotFound       = errors.New("code not found")
)

const (
	// PasswordCost is the bcrypt cost used for new passwords.
	PasswordCost = 10
	// VerificationCodeBytes is the entropy of a verification code in bytes.
	VerificationCodeBytes = 32
	// VerificationPath is appended to the caller supplied base URL.
	VerificationPath = "/auth/verify_email/"
)

// UserReader defines read-only operations for users.
type UserReader interface {
	List(ctx context.Context) ([]models.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Save(ctx context.Context, user models.User) (*models.User, error)
	Update(ctx context.Context, userID uuid.UUID, upd models.UserProfileUpdate) (*models.User, error)
	SetVerified(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Delete(ctx context.Context, userID uuid.UUID) (bool, error)
}

// VerificationCodeReader looks up verification codes.
type VerificationCodeReader interface {
	GetByCode(ctx context.Context, code string) (*models.VerificationCode, error)
}

// VerificationCodeWriter stores and consumes verification codes.
type VerificationCodeWriter interface {
	Save(ctx context.Context, code string, userID uuid.UUID) error
	Delete(ctx context.Context, code string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// UserCache caches single user reads.
type UserCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Set(ctx context.Context, user models.User) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// TokenGenerator issues session tokens.
type TokenGenerator interface {
	Generate(ctx context.Context, user models.User) (string, error)
}

// Notifier delivers HTML emails.
type Notifier interface {
	SendHTML(ctx context.Context, to, subject, htmlBody string) error
}

// KafkaWriter defines a Kafka writer abstraction.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RegisterParams holds the registration input.
type RegisterParams struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Country      string
	Image        *string
	FrontBaseURL string
}

// AccountService implements registration, email verification, login and profile management.
type AccountService struct {
	userReader  UserReader
	userWriter  UserWriter
	codeReader  VerificationCodeReader
	codeWriter  VerificationCodeWriter
	cache       UserCache
	tokens      TokenGenerator
	notifier    Notifier
	kafkaWriter KafkaWriter
	newCode     func() (string, error)
	afterCommit func(ctx context.Context, fn func())
}

// AccountOption configures an AccountService.
type AccountOption func(*AccountService)

// WithAfterCommit sets how work that must only follow a committed write is
// scheduled. By default it runs immediately.
func WithAfterCommit(afterCommit func(ctx context.Context, fn func())) AccountOption {
	return func(s *AccountService) {
		s.afterCommit = afterCommit
	}
}

// NewAccountService creates a new AccountService.
// cache and kafkaWriter are optional and may be nil.
func NewAccountService(
	userReader UserReader,
	userWriter UserWriter,
	codeReader VerificationCodeReader,
	codeWriter VerificationCodeWriter,
	cache UserCache,
	tokens TokenGenerator,
	notifier Notifier,
	kafkaWriter KafkaWriter,
	opts ...AccountOption,
) *AccountService {
	s := &AccountService{
		userReader:  userReader,
		userWriter:  userWriter,
		codeReader:  codeReader,
		codeWriter:  codeWriter,
		cache:       cache,
		tokens:      tokens,
		notifier:    notifier,
		kafkaWriter: kafkaWriter,
		newCode:     generateVerificationCode,
		afterCommit: func(_ context.Context, fn func()) { fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// generateVerificationCode returns a hex encoded random code.
func generateVerificationCode() (string, error) {
	b := make([]byte, VerificationCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// VerificationLink builds the link sent to the user.
func VerificationLink(frontBaseURL, code string) string {
	return strings.TrimRight(frontBaseURL, "/") + VerificationPath + code
}

// Register creates an unverified user, issues a verification code and emails the link.
// The user and code stay persisted when the email cannot be delivered.
func (s *AccountService) Register(ctx context.Context, p RegisterParams) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(p.Password), PasswordCost)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "error", err)
		return nil, err
	}

	user, err := s.userWriter.Save(ctx, models.User{
		Email:        p.Email,
		PasswordHash: string(hashed),
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Country:      p.Country,
		Image:        p.Image,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			logger.Log.Warnw("email already registered", "email", p.Email)
			return nil, ErrDuplicateEmail
		}
		logger.Log.Errorw("failed to save user", "email", p.Email, "error", err)
		return nil, err
	}

	code, err := s.issueCode(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, *user, models.OperationRegistered)

	subject, body, err := verificationEmail(user.FirstName, user.LastName, VerificationLink(p.FrontBaseURL, code))
	if err != nil {
		logger.Log.Errorw("failed to render verification email", "userID", user.UserID, "error", err)
		return nil, err
	}
	if err := s.notifier.SendHTML(ctx, user.Email, subject, body); err != nil {
		logger.Log.Errorw("failed to send verification email", "userID", user.UserID, "error", err)
		return nil, fmt.Errorf("send verification email: %w", err)
	}

	return user, nil
}

// issueCode replaces any previous code of the user with a fresh one.
func (s *AccountService) issueCode(ctx context.Context, userID uuid.UUID) (string, error) {
	if err := s.codeWriter.DeleteByUserID(ctx, userID); err != nil {
		logger.Log.Errorw("failed to clear previous verification codes", "userID", userID, "error", err)
		return "", err
	}

	code, err := s.newCode()
	if err != nil {
		logger.Log.Errorw("failed to generate verification code", "error", err)
		return "", err
	}

	if err := s.codeWriter.Save(ctx, code, userID); err != nil {
		logger.Log.Errorw("failed to save verification code", "userID", userID, "error", err)
		return "", err
	}
	return code, nil
}

// VerifyEmail consumes a verification code and marks its owner verified.
func (s *AccountService) VerifyEmail(ctx context.Context, code string) (*models.User, error) {
	vc, err := s.codeReader.GetByCode(ctx, code)
	if err != nil {
		logger.Log.Errorw("failed to get verification code", "error", err)
		return nil, err
	}
	if vc == nil {
		logger.Log.Warnw("verification code not found")
		return nil, ErrCodeNotFound
	}

	user, err := s.userWriter.SetVerified(ctx, vc.UserID)
	if err != nil {
		logger.Log.Errorw("failed to mark user verified", "userID", vc.UserID, "error", err)
		return nil, err
	}
	if user == nil {
		// owner deleted between lookup and update
		logger.Log.Warnw("verification code owner not found", "userID", vc.UserID)
		return nil, ErrCodeNotFound
	}

	if err := s.codeWriter.Delete(ctx, code); err != nil {
		logger.Log.Errorw("failed to delete verification code", "userID", vc.UserID, "error", err)
		return nil, err
	}

	s.evict(ctx, user.UserID)
	s.publishEvent(ctx, *user, models.OperationVerified)

	return user, nil
}

// Login checks the credentials and issues a session token for a verified user.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.userReader.GetByEmail(ctx, email)
	if err != nil {
		logger.Log.Errorw("failed to get user", "error", err)
		return nil, "", err
	}
	if user == nil {
		logger.Log.Warnw("login with unknown email")
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Log.Warnw("login with wrong password", "userID", user.UserID)
		return nil, "", ErrInvalidCredentials
	}

	if !user.IsVerified {
		logger.Log.Warnw("login of unverified user", "userID", user.UserID)
		return nil, "", ErrNotVerified
	}

	token, err := s.tokens.Generate(ctx, *user)
	if err != nil {
		logger.Log.Errorw("failed to generate JWT", "userID", user.UserID, "error", err)
		return nil, "", err
	}

	return user, token, nil
}

// List returns all users.
func (s *AccountService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.userReader.List(ctx)
	if err != nil {
		logger.Log.Errorw("failed to list users", "error", err)
		return nil, err
	}
	return users, nil
}

// Get returns a user by id, reading through the cache when configured.
func (s *AccountService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			logger.Log.Errorw("failed to read user cache", "userID", userID, "error", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	user, err := s.userReader.GetByID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to get user", "userID", userID, "error", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, *user); err != nil {
			logger.Log.Errorw("failed to cache user", "userID", userID, "error", err)
		}
	}
	return user, nil
}

// Update changes the profile fields of a user.
func (s *AccountService) Update(ctx context.Context, userID uuid.UUID, upd models.UserProfileUpdate) (*models.User, error) {
	user, err := s.userWriter.Update(ctx, userID, upd)
	if err != nil {
		logger.Log.Errorw("failed to update user", "userID", userID, "error", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	s.evict(ctx, userID)
	s.publishEvent(ctx, *user, models.OperationUpdated)

	return user, nil
}

// Delete removes a user.
func (s *AccountService) Delete(ctx context.Context, userID uuid.UUID) error {
	deleted, err := s.userWriter.Delete(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to delete user", "userID", userID, "error", err)
		return err
	}
	if !deleted {
		return ErrUserNotFound
	}

	s.evict(ctx, userID)
	s.publishEvent(ctx, models.User{UserID: userID}, models.OperationDeleted)

	return nil
}

// evict drops the cached user now and again once the write is committed,
// so a read racing the transaction cannot leave the old row cached.
func (s *AccountService) evict(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	deleteCached := func() {
		if err := s.cache.Delete(ctx, userID); err != nil {
			logger.Log.Errorw("failed to evict cached user", "userID", userID, "error", err)
		}
	}
	deleteCached()
	s.afterCommit(ctx, deleteCached)
}

// publishEvent publishes an account event to Kafka once the write is committed.
// Failures are logged only.
func (s *AccountService) publishEvent(ctx context.Context, user models.User, operation string) {
	if s.kafkaWriter == nil {
		logger.Log.Debugw("Kafka writer not configured, skipping publishing", "operation", operation)
		return
	}
	s.afterCommit(ctx, func() { s.writeEvent(ctx, user, operation) })
}

func (s *AccountService) writeEvent(ctx context.Context, user models.User, operation string) {

	event := models.AccountEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().Unix(),
		UserID:    user.UserID.String(),
		Email:     user.Email,
		Operation: operation,
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Errorw("Failed to marshal account event", "event_id", event.EventID, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
	}

	if err := s.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		logger.Log.Errorw("Failed to publish account event", "event_id", event.EventID, "operation", operation, "error", err)
	} else {
		logger.Log.Infow("Account event published", "event_id", event.EventID, "operation", operation)
	}
}
