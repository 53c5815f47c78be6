package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
)

// DefaultSessionTTL is used when NewSessionService gets a non-positive ttl.
const DefaultSessionTTL = 30 * 24 * time.Hour

const sessionTokenBytes = 32

// sessionService issues and validates opaque session tokens.
type sessionService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewSessionService creates a new SessionServicer.
func NewSessionService(db *gorm.DB, ttl time.Duration) SessionServicer {
	return newSessionService(db, ttl)
}

func newSessionService(db *gorm.DB, ttl time.Duration) *sessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionService{db: db, ttl: ttl, now: time.Now}
}

// hashSessionToken returns the hex SHA-256 digest stored in place of the token.
func hashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreateSession stores a new session and returns the plain token, which is
// never persisted.
func (s *sessionService) CreateSession(userID, userAgent, ipAddress string) (string, *models.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	session := &models.Session{
		UserID:    userID,
		TokenHash: hashSessionToken(token),
		ExpiresAt: s.now().UTC().Add(s.ttl),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}
	if err := s.db.Create(session).Error; err != nil {
		return "", nil, translateDBError(err, apperrors.ErrUserNotFound, nil)
	}
	return token, session, nil
}

// GetUserBySessionToken resolves a token to its session and user. Expired
// sessions are deleted on sight.
func (s *sessionService) GetUserBySessionToken(token string) (*models.User, *models.Session, error) {
	if token == "" {
		return nil, nil, apperrors.ErrInvalidSession
	}

	var session models.Session
	if err := s.db.Where("token_hash = ?", hashSessionToken(token)).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrInvalidSession
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if session.IsExpired(s.now()) {
		s.expire(&session)
		return nil, nil, apperrors.ErrInvalidSession
	}

	var user models.User
	if err := s.db.Where("id = ?", session.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrInvalidSession
		}
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &user, &session, nil
}

// GetActiveSession returns the session with its current user if it exists
// and has not expired.
func (s *sessionService) GetActiveSession(sessionID string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Where("id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidSession
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if session.IsExpired(s.now()) {
		s.expire(&session)
		return nil, apperrors.ErrInvalidSession
	}

	var user models.User
	if err := s.db.Where("id = ?", session.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidSession
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	session.User = &user
	return &session, nil
}

// DeleteSession ends a session. Deleting an unknown session is not an error.
func (s *sessionService) DeleteSession(sessionID string) error {
	if err := s.db.Where("id = ?", sessionID).Delete(&models.Session{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// PurgeExpiredSessions removes every expired session and reports how many
// were deleted.
func (s *sessionService) PurgeExpiredSessions() (int64, error) {
	res := s.db.Where("expires_at <= ?", s.now().UTC()).Delete(&models.Session{})
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *sessionService) expire(session *models.Session) {
	if err := s.db.Delete(session).Error; err != nil {
		logger.Get().Warnw("failed to delete expired session", "session_id", session.ID, "error", err)
	}
}
