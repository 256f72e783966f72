package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
)

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	ProfileImage string     `json:"profileImage,omitempty"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	Verified     bool       `json:"isVerified"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Profile is the reduced user shape embedded in friend lists, project
// member listings, and feed entries.
type Profile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// ProfileOf trims a full user down to its public profile.
func ProfileOf(u User) Profile {
	return Profile{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ProfileImage: u.ProfileImage,
	}
}

// FileRef points at a stored artifact. StoredName is unique within a
// project and doubles as the object-store key suffix.
type FileRef struct {
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"storedName"`
	URL          string    `json:"fileUrl"`
	MimeType     string    `json:"mimetype,omitempty"`
	UploadedAt   time.Time `json:"uploadDate"`
}

// Lock marks a project as checked out. A nil lock means unlocked.
type Lock struct {
	HolderID   string    `json:"holderId"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

type Project struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	OwnerID        string    `json:"ownerId"`
	MemberIDs      []string  `json:"memberIds"`
	ProjectType    string    `json:"projectType,omitempty"`
	Hashtags       []string  `json:"hashtags"`
	CurrentVersion string    `json:"currentVersion"`
	Lock           *Lock     `json:"lock,omitempty"`
	Files          []FileRef `json:"files"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// IsMember reports whether the user has write access to the project.
// The owner is always a member.
func (p Project) IsMember(userID string) bool {
	if userID == "" {
		return false
	}
	if p.OwnerID == userID {
		return true
	}
	for _, id := range p.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// FileByStoredName returns the index of the file ref with the given
// stored name, or -1.
func (p Project) FileByStoredName(storedName string) int {
	for i, f := range p.Files {
		if f.StoredName == storedName {
			return i
		}
	}
	return -1
}

// Checkin is one immutable ledger entry. It is never updated after
// creation; only a whole-project delete removes it.
type Checkin struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	AuthorID  string    `json:"authorId"`
	Message   string    `json:"message"`
	Version   string    `json:"version,omitempty"`
	Files     []FileRef `json:"files"`
	CreatedAt time.Time `json:"createdAt"`
}

type FriendRequestStatus string

const (
	RequestPending  FriendRequestStatus = "pending"
	RequestAccepted FriendRequestStatus = "accepted"
	RequestRejected FriendRequestStatus = "rejected"
)

type FriendRequest struct {
	ID        string              `json:"id"`
	FromID    string              `json:"fromId"`
	ToID      string              `json:"toId"`
	Status    FriendRequestStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Feed event verbs.
const (
	VerbProjectCreated = "project_created"
	VerbCheckin        = "checkin"
)

// Event is one activity feed entry.
type Event struct {
	ID          string    `json:"id"`
	ActorID     string    `json:"actorId"`
	Verb        string    `json:"verb"`
	ProjectID   string    `json:"projectId"`
	ProjectName string    `json:"projectName"`
	CheckinID   string    `json:"checkinId,omitempty"`
	Message     string    `json:"message,omitempty"`
	Version     string    `json:"version,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProjectTypes is the static classification list offered at project
// creation time.
var ProjectTypes = []string{"Desktop App", "Web App", "Mobile App", "Framework", "Library"}
