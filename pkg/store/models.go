package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string
	LastName     string
	ProfileImage string
	Role         string `gorm:"not null"`
	Status       string
	Verified     bool
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type ProjectModel struct {
	ID             string `gorm:"primaryKey"`
	Name           string `gorm:"not null;index"`
	Description    string `gorm:"type:text;not null"`
	OwnerID        string `gorm:"not null;index"`
	MemberIDs      datatypes.JSON
	ProjectType    string
	Hashtags       datatypes.JSON
	CurrentVersion string
	IsCheckedOut   bool
	CheckedOutBy   string
	CheckedOutAt   *time.Time
	Files          datatypes.JSON
	ImageURL       string
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

type CheckinModel struct {
	ID        string `gorm:"primaryKey"`
	ProjectID string `gorm:"not null;index"`
	AuthorID  string `gorm:"not null;index"`
	Message   string `gorm:"type:text;not null"`
	Version   string
	Files     datatypes.JSON
	CreatedAt time.Time `gorm:"not null;index"`
}

type FriendRequestModel struct {
	ID        string `gorm:"primaryKey"`
	FromID    string `gorm:"not null;index"`
	ToID      string `gorm:"not null;index"`
	Status    string `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

// FriendshipModel stores one row per direction; AddFriendship writes
// both directions so lookups stay single-column.
type FriendshipModel struct {
	UserID    string `gorm:"primaryKey"`
	FriendID  string `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}
