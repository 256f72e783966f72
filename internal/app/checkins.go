package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devhub/internal/util"
	"devhub/pkg/domain"
)

// Checkout acquires the exclusive editing lock on a project. Checking
// out a project you already hold is a no-op that succeeds.
func (a *App) Checkout(ctx context.Context, actor domain.User, projectID string) (domain.Project, error) {
	project, err := a.GetProject(projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !project.IsMember(actor.ID) {
		return domain.Project{}, forbidden("only project members can check out the project")
	}
	if project.Lock != nil {
		if project.Lock.HolderID == actor.ID {
			return project, nil
		}
		return domain.Project{}, conflict("project is checked out by another user")
	}
	project.Lock = &domain.Lock{HolderID: actor.ID, AcquiredAt: time.Now().UTC()}
	project.UpdatedAt = project.Lock.AcquiredAt
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	util.LoggerFromContext(ctx).Info("project checked out", "project_id", project.ID, "user_id", actor.ID)
	return project, nil
}

// CheckinRequest carries the check-in fields alongside the uploaded
// artifacts.
type CheckinRequest struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// Checkin releases the caller's lock, appends a ledger entry, and
// merges uploaded artifacts into the project by original filename: an
// upload whose original name matches an existing artifact replaces it,
// anything else is added.
func (a *App) Checkin(ctx context.Context, actor domain.User, projectID string, req CheckinRequest, files []Upload) (domain.Project, domain.Checkin, error) {
	project, err := a.GetProject(projectID)
	if err != nil {
		return domain.Project{}, domain.Checkin{}, err
	}
	if !project.IsMember(actor.ID) {
		return domain.Project{}, domain.Checkin{}, forbidden("only project members can check in")
	}
	if project.Lock == nil || project.Lock.HolderID != actor.ID {
		return domain.Project{}, domain.Checkin{}, invalidState("project is not checked out by you")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" && len(files) == 0 {
		return domain.Project{}, domain.Checkin{}, invalid("a check-in needs a message or at least one file")
	}

	refs := make([]domain.FileRef, 0, len(files))
	for _, up := range files {
		ref, err := a.storeUpload(ctx, project.ID, up)
		if err != nil {
			return domain.Project{}, domain.Checkin{}, err
		}
		refs = append(refs, ref)
	}

	var replaced []domain.FileRef
	for _, ref := range refs {
		if i := fileByOriginalName(project.Files, ref.OriginalName); i >= 0 {
			replaced = append(replaced, project.Files[i])
			project.Files[i] = ref
		} else {
			project.Files = append(project.Files, ref)
		}
	}

	now := time.Now().UTC()
	version := strings.TrimSpace(req.Version)
	if version != "" {
		project.CurrentVersion = version
	}
	checkin := domain.Checkin{
		ID:        util.NewID(),
		ProjectID: project.ID,
		AuthorID:  actor.ID,
		Message:   message,
		Version:   version,
		Files:     refs,
		CreatedAt: now,
	}
	project.Lock = nil
	project.UpdatedAt = now
	if err := a.store.CommitCheckin(project, checkin); err != nil {
		return domain.Project{}, domain.Checkin{}, fmt.Errorf("commit checkin: %w", err)
	}
	for _, old := range replaced {
		a.deleteArtifact(ctx, old.URL)
	}
	a.publishEvent(ctx, domain.Event{
		ActorID:     actor.ID,
		Verb:        domain.VerbCheckin,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		CheckinID:   checkin.ID,
		Message:     message,
		Version:     version,
	})
	util.LoggerFromContext(ctx).Info("project checked in", "project_id", project.ID, "user_id", actor.ID, "checkin_id", checkin.ID)
	return project, checkin, nil
}

// ListCheckins returns the project's ledger, newest first.
func (a *App) ListCheckins(projectID string) ([]domain.Checkin, error) {
	if _, err := a.GetProject(projectID); err != nil {
		return nil, err
	}
	return a.store.ListCheckinsByProject(projectID)
}

func fileByOriginalName(files []domain.FileRef, originalName string) int {
	for i, f := range files {
		if f.OriginalName == originalName {
			return i
		}
	}
	return -1
}
