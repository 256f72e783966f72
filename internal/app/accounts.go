package app

import (
	"fmt"
	"strings"
	"time"

	"devhub/internal/util"
	"devhub/pkg/auth"
	"devhub/pkg/domain"
)

// SignUpRequest carries the fields accepted at registration.
type SignUpRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// TokenPair is a session token plus its refresh token.
type TokenPair struct {
	Session string `json:"token"`
	Refresh string `json:"refreshToken"`
}

// SignUp registers a new user. The first registered account becomes
// the admin.
func (a *App) SignUp(req SignUpRequest) (domain.User, TokenPair, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return domain.User{}, TokenPair{}, invalid("username, email, and password are required")
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return domain.User{}, TokenPair{}, invalid("%s", err.Error())
	}
	if exists, err := a.store.HasUserEmail(email); err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, TokenPair{}, conflict("email already registered")
	}
	if exists, err := a.store.HasUsername(username); err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("check username: %w", err)
	} else if exists {
		return domain.User{}, TokenPair{}, conflict("username already taken")
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}
	role := domain.RoleUser
	count, err := a.store.UserCount()
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         role,
		Status:       domain.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("save user: %w", err)
	}
	return a.issueTokens(user)
}

// Login validates credentials and issues a token pair.
func (a *App) Login(email, password string) (domain.User, TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, TokenPair{}, errInvalidCredentials
	}
	if user.Status == domain.StatusDisabled {
		return domain.User{}, TokenPair{}, errUserDisabled
	}
	return a.issueTokens(user)
}

// Refresh rotates the refresh token and issues a fresh session token.
func (a *App) Refresh(refreshToken string) (domain.User, TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return domain.User{}, TokenPair{}, invalid("refresh token required")
	}
	userID, newRefresh, err := a.refreshTokens.RotateToken(refreshToken, a.refreshTTL)
	if err != nil {
		return domain.User{}, TokenPair{}, unauthorized("invalid refresh token")
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok || user.Status == domain.StatusDisabled {
		return domain.User{}, TokenPair{}, unauthorized("invalid refresh token")
	}
	session, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("issue session: %w", err)
	}
	return user, TokenPair{Session: session, Refresh: newRefresh}, nil
}

// Logout revokes the session token and drops the refresh token family.
func (a *App) Logout(sessionToken, refreshToken string) error {
	if err := a.sessions.DeleteSession(sessionToken); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if strings.TrimSpace(refreshToken) != "" {
		if err := a.refreshTokens.DeleteToken(refreshToken); err != nil {
			return fmt.Errorf("drop refresh token: %w", err)
		}
	}
	return nil
}

// UserFromToken resolves a session token to its active user.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil || !ok || user.Status == domain.StatusDisabled {
		return domain.User{}, false
	}
	return user, true
}

// UserProfile is a user together with their friend list.
type UserProfile struct {
	domain.User
	Friends []domain.Profile `json:"friends"`
}

// GetUser returns a user's profile with friends resolved.
func (a *App) GetUser(id string) (UserProfile, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return UserProfile{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return UserProfile{}, notFound("user not found")
	}
	friends, err := a.friendProfiles(id)
	if err != nil {
		return UserProfile{}, err
	}
	return UserProfile{User: user, Friends: friends}, nil
}

// ProfileUpdate carries the self-editable profile fields. Nil means
// leave unchanged.
type ProfileUpdate struct {
	FirstName    *string `json:"firstName"`
	LastName     *string `json:"lastName"`
	ProfileImage *string `json:"profileImage"`
}

// UpdateProfile edits the caller's own profile.
func (a *App) UpdateProfile(actor domain.User, targetID string, update ProfileUpdate) (domain.User, error) {
	if actor.ID != targetID {
		return domain.User{}, forbidden("cannot edit another user's profile")
	}
	user, ok, err := a.store.GetUserByID(targetID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, notFound("user not found")
	}
	if update.FirstName != nil {
		user.FirstName = strings.TrimSpace(*update.FirstName)
	}
	if update.LastName != nil {
		user.LastName = strings.TrimSpace(*update.LastName)
	}
	if update.ProfileImage != nil {
		user.ProfileImage = strings.TrimSpace(*update.ProfileImage)
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// ListUsers returns all users.
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// SearchUsers returns public profiles matching the query.
func (a *App) SearchUsers(query string) ([]domain.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("search query required")
	}
	users, err := a.store.SearchUsers(query)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	profiles := make([]domain.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, domain.ProfileOf(u))
	}
	return profiles, nil
}

func (a *App) issueTokens(user domain.User) (domain.User, TokenPair, error) {
	session, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("issue session: %w", err)
	}
	refresh, err := a.refreshTokens.NewToken(user.ID, a.refreshTTL)
	if err != nil {
		return domain.User{}, TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return user, TokenPair{Session: session, Refresh: refresh}, nil
}

func (a *App) friendProfiles(userID string) ([]domain.Profile, error) {
	ids, err := a.store.ListFriendIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	profiles := make([]domain.Profile, 0, len(ids))
	for _, id := range ids {
		friend, ok, err := a.store.GetUserByID(id)
		if err != nil {
			return nil, fmt.Errorf("fetch friend: %w", err)
		}
		if ok {
			profiles = append(profiles, domain.ProfileOf(friend))
		}
	}
	return profiles, nil
}
