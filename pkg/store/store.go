package store

import (
	"errors"
	"time"

	"devhub/pkg/domain"
)

// ErrNotFound is returned for lookups of records that do not exist.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for users, friendships,
// projects, and the check-in ledger.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	HasUsername(username string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	SearchUsers(query string) ([]domain.User, error)
	UserCount() (int, error)
	DeleteUser(id string) error

	// friendships
	SaveFriendRequest(domain.FriendRequest) error
	GetFriendRequest(id string) (domain.FriendRequest, bool, error)
	HasPendingRequestBetween(a, b string) (bool, error)
	ListRequestsTo(userID string) ([]domain.FriendRequest, error)
	ListRequestsFrom(userID string) ([]domain.FriendRequest, error)
	DeleteFriendRequest(id string) error
	AddFriendship(a, b string) error
	RemoveFriendship(a, b string) error
	AreFriends(a, b string) (bool, error)
	ListFriendIDs(userID string) ([]string, error)

	// projects
	SaveProject(domain.Project) error
	GetProject(id string) (domain.Project, bool, error)
	ListProjects() ([]domain.Project, error)
	SearchProjects(query string) ([]domain.Project, error)
	DeleteProject(id string) error

	// check-in ledger (append-only)
	SaveCheckin(domain.Checkin) error
	ListCheckinsByProject(projectID string) ([]domain.Checkin, error)
	SearchCheckins(query string) ([]domain.Checkin, error)
	DeleteCheckinsByProject(projectID string) error

	// CommitCheckin appends a ledger entry and replaces the project
	// record as one unit, so a failed project update never leaves an
	// orphaned ledger entry behind.
	CommitCheckin(project domain.Project, checkin domain.Checkin) error
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// RefreshTokenStore persists refresh tokens for rotation and replay
// detection.
type RefreshTokenStore interface {
	NewToken(userID string, ttl time.Duration) (string, error)
	RotateToken(token string, ttl time.Duration) (userID string, newToken string, err error)
	DeleteToken(token string) error
}
