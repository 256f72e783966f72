package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devhub/internal/util"
	"devhub/pkg/domain"
)

// AdminUserUpdate carries the fields an admin may change on any user.
type AdminUserUpdate struct {
	FirstName    *string            `json:"firstName"`
	LastName     *string            `json:"lastName"`
	ProfileImage *string            `json:"profileImage"`
	Role         *domain.UserRole   `json:"role"`
	Status       *domain.UserStatus `json:"status"`
}

// AdminUpdateUser edits any user's profile, role, or status.
func (a *App) AdminUpdateUser(id string, update AdminUserUpdate) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
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
	if update.Role != nil {
		if *update.Role != domain.RoleUser && *update.Role != domain.RoleAdmin {
			return domain.User{}, invalid("unknown role %q", *update.Role)
		}
		user.Role = *update.Role
	}
	if update.Status != nil {
		if *update.Status != domain.StatusActive && *update.Status != domain.StatusDisabled {
			return domain.User{}, invalid("unknown status %q", *update.Status)
		}
		user.Status = *update.Status
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// AdminVerifyUser marks a user account as verified.
func (a *App) AdminVerifyUser(id string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, notFound("user not found")
	}
	user.Verified = true
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// AdminDeleteUser removes a user account along with their friendships
// and pending requests. Projects the user owns are left in place.
func (a *App) AdminDeleteUser(actor domain.User, id string) error {
	if actor.ID == id {
		return invalid("cannot delete your own account")
	}
	if _, ok, err := a.store.GetUserByID(id); err != nil {
		return fmt.Errorf("fetch user: %w", err)
	} else if !ok {
		return notFound("user not found")
	}
	if err := a.store.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// AdminUpdateProject edits any project's metadata regardless of
// membership.
func (a *App) AdminUpdateProject(ctx context.Context, id string, update ProjectUpdate) (domain.Project, error) {
	project, err := a.GetProject(id)
	if err != nil {
		return domain.Project{}, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return domain.Project{}, invalid("project name cannot be empty")
		}
		project.Name = name
	}
	if update.Description != nil {
		project.Description = strings.TrimSpace(*update.Description)
	}
	if update.ProjectType != nil {
		if *update.ProjectType != "" && !validProjectType(*update.ProjectType) {
			return domain.Project{}, invalid("unknown project type %q", *update.ProjectType)
		}
		project.ProjectType = *update.ProjectType
	}
	if update.Hashtags != nil {
		project.Hashtags = normalizeHashtags(*update.Hashtags)
	}
	if update.MemberIDs != nil {
		project.MemberIDs = withMember(*update.MemberIDs, project.OwnerID)
	}
	project.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	return project, nil
}

// AdminDeleteProject removes any project, its ledger, and artifacts.
func (a *App) AdminDeleteProject(ctx context.Context, id string) error {
	project, err := a.GetProject(id)
	if err != nil {
		return err
	}
	return a.removeProject(ctx, project)
}

// AdminUnlockProject clears a stuck checkout lock without a check-in.
func (a *App) AdminUnlockProject(ctx context.Context, actor domain.User, id string) (domain.Project, error) {
	project, err := a.GetProject(id)
	if err != nil {
		return domain.Project{}, err
	}
	if project.Lock == nil {
		return project, nil
	}
	holder := project.Lock.HolderID
	project.Lock = nil
	project.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	util.LoggerFromContext(ctx).Info("project lock cleared by admin",
		"project_id", project.ID, "admin_id", actor.ID, "holder_id", holder)
	return project, nil
}
