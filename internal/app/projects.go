package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"devhub/internal/util"
	"devhub/pkg/domain"
)

// Upload is one incoming artifact, decoded from a multipart part.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// CreateProjectRequest carries the fields accepted at project creation.
type CreateProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ProjectType string   `json:"projectType"`
	Hashtags    []string `json:"hashtags"`
	MemberIDs   []string `json:"memberIds"`
	Version     string   `json:"version"`
}

// CreateProject registers a new project, stores any initial artifacts,
// writes the opening ledger entry, and announces it on the feed.
func (a *App) CreateProject(ctx context.Context, actor domain.User, req CreateProjectRequest, files []Upload, image *Upload) (domain.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Project{}, invalid("project name is required")
	}
	if req.ProjectType != "" && !validProjectType(req.ProjectType) {
		return domain.Project{}, invalid("unknown project type %q", req.ProjectType)
	}
	version := strings.TrimSpace(req.Version)
	if version == "" {
		version = "1.0.0"
	}
	now := time.Now().UTC()
	project := domain.Project{
		ID:             util.NewID(),
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
		OwnerID:        actor.ID,
		MemberIDs:      withMember(req.MemberIDs, actor.ID),
		ProjectType:    req.ProjectType,
		Hashtags:       normalizeHashtags(req.Hashtags),
		CurrentVersion: version,
		Files:          []domain.FileRef{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, up := range files {
		ref, err := a.storeUpload(ctx, project.ID, up)
		if err != nil {
			return domain.Project{}, err
		}
		project.Files = append(project.Files, ref)
	}
	if image != nil {
		ref, err := a.storeUpload(ctx, project.ID, *image)
		if err != nil {
			return domain.Project{}, err
		}
		project.ImageURL = ref.URL
	}
	checkin := domain.Checkin{
		ID:        util.NewID(),
		ProjectID: project.ID,
		AuthorID:  actor.ID,
		Message:   "Project created",
		Version:   version,
		Files:     append([]domain.FileRef(nil), project.Files...),
		CreatedAt: now,
	}
	if err := a.store.CommitCheckin(project, checkin); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	a.publishEvent(ctx, domain.Event{
		ActorID:     actor.ID,
		Verb:        domain.VerbProjectCreated,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		CheckinID:   checkin.ID,
		Message:     checkin.Message,
		Version:     version,
	})
	return project, nil
}

// GetProject returns one project by ID.
func (a *App) GetProject(id string) (domain.Project, error) {
	project, ok, err := a.store.GetProject(id)
	if err != nil {
		return domain.Project{}, fmt.Errorf("fetch project: %w", err)
	}
	if !ok {
		return domain.Project{}, notFound("project not found")
	}
	return project, nil
}

// ListProjects returns all projects, newest first.
func (a *App) ListProjects() ([]domain.Project, error) {
	return a.store.ListProjects()
}

// SearchProjects returns projects matching the query by name,
// description, or hashtag.
func (a *App) SearchProjects(query string) ([]domain.Project, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("search query required")
	}
	return a.store.SearchProjects(query)
}

// ProjectUpdate carries the editable project fields. Nil means leave
// unchanged.
type ProjectUpdate struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	ProjectType *string   `json:"projectType"`
	Hashtags    *[]string `json:"hashtags"`
	MemberIDs   *[]string `json:"memberIds"`
}

// UpdateProject edits project metadata. Members may edit; artifacts
// are not touched here.
func (a *App) UpdateProject(ctx context.Context, actor domain.User, id string, update ProjectUpdate, image *Upload) (domain.Project, error) {
	project, err := a.GetProject(id)
	if err != nil {
		return domain.Project{}, err
	}
	if !project.IsMember(actor.ID) {
		return domain.Project{}, forbidden("only project members can edit the project")
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
	if image != nil {
		ref, err := a.storeUpload(ctx, project.ID, *image)
		if err != nil {
			return domain.Project{}, err
		}
		oldImage := project.ImageURL
		project.ImageURL = ref.URL
		if oldImage != "" {
			a.deleteArtifact(ctx, oldImage)
		}
	}
	project.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	return project, nil
}

// DeleteProject removes a project, its ledger, and its artifacts. Only
// the owner may delete; admins use the admin surface.
func (a *App) DeleteProject(ctx context.Context, actor domain.User, id string) error {
	project, err := a.GetProject(id)
	if err != nil {
		return err
	}
	if project.OwnerID != actor.ID {
		return forbidden("only the project owner can delete the project")
	}
	return a.removeProject(ctx, project)
}

// removeProject deletes ledger entries before the project record, so a
// partial failure never leaves checkins pointing at a missing project.
func (a *App) removeProject(ctx context.Context, project domain.Project) error {
	if err := a.store.DeleteCheckinsByProject(project.ID); err != nil {
		return fmt.Errorf("delete checkins: %w", err)
	}
	if err := a.store.DeleteProject(project.ID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	for _, f := range project.Files {
		a.deleteArtifact(ctx, f.URL)
	}
	if project.ImageURL != "" {
		a.deleteArtifact(ctx, project.ImageURL)
	}
	return nil
}

// AddFiles uploads new artifacts and appends them to the project.
func (a *App) AddFiles(ctx context.Context, actor domain.User, projectID string, uploads []Upload) (domain.Project, error) {
	project, err := a.mutableProject(actor, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if len(uploads) == 0 {
		return domain.Project{}, invalid("at least one file is required")
	}
	for _, up := range uploads {
		ref, err := a.storeUpload(ctx, project.ID, up)
		if err != nil {
			return domain.Project{}, err
		}
		project.Files = append(project.Files, ref)
	}
	project.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	return project, nil
}

// ReplaceFile swaps one artifact for a new upload. The replacement
// gets a fresh stored name; the project record is updated before the
// old artifact is removed, so a crash in between leaves only an
// unreferenced object behind.
func (a *App) ReplaceFile(ctx context.Context, actor domain.User, projectID, storedName string, up Upload) (domain.Project, error) {
	project, err := a.mutableProject(actor, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	idx := project.FileByStoredName(storedName)
	if idx < 0 {
		return domain.Project{}, notFound("file not found")
	}
	ref, err := a.storeUpload(ctx, project.ID, up)
	if err != nil {
		return domain.Project{}, err
	}
	old := project.Files[idx]
	project.Files[idx] = ref
	project.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	a.deleteArtifact(ctx, old.URL)
	return project, nil
}

// DeleteFile removes one artifact from the project. Deleting a stored
// name that is already gone succeeds.
func (a *App) DeleteFile(ctx context.Context, actor domain.User, projectID, storedName string) (domain.Project, error) {
	project, err := a.mutableProject(actor, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	idx := project.FileByStoredName(storedName)
	if idx < 0 {
		return project, nil
	}
	old := project.Files[idx]
	project.Files = append(project.Files[:idx], project.Files[idx+1:]...)
	project.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveProject(project); err != nil {
		return domain.Project{}, fmt.Errorf("save project: %w", err)
	}
	a.deleteArtifact(ctx, old.URL)
	return project, nil
}

// FileDownload is a short-lived download link for one artifact.
type FileDownload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// FileDownloadURL presigns a download link for one artifact.
func (a *App) FileDownloadURL(ctx context.Context, projectID, storedName string) (FileDownload, error) {
	project, err := a.GetProject(projectID)
	if err != nil {
		return FileDownload{}, err
	}
	idx := project.FileByStoredName(storedName)
	if idx < 0 {
		return FileDownload{}, notFound("file not found")
	}
	ref := project.Files[idx]
	url, err := a.objects.PresignGet(ctx, ref.URL, a.presignExpiry)
	if err != nil {
		return FileDownload{}, storageFailed("presign download", err)
	}
	return FileDownload{URL: url, Filename: ref.OriginalName}, nil
}

// mutableProject loads a project for a direct file mutation. Only
// membership is required; the checkout lock does not apply to these
// operations, which sit outside the check-in protocol.
func (a *App) mutableProject(actor domain.User, projectID string) (domain.Project, error) {
	project, err := a.GetProject(projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !project.IsMember(actor.ID) {
		return domain.Project{}, forbidden("only project members can modify files")
	}
	return project, nil
}

func (a *App) storeUpload(ctx context.Context, projectID string, up Upload) (domain.FileRef, error) {
	if strings.TrimSpace(up.Filename) == "" {
		return domain.FileRef{}, invalid("uploaded file is missing a name")
	}
	storedName := artifactName(up.Filename)
	key := artifactKey(projectID, storedName)
	if err := a.objects.Put(ctx, key, up.Reader, up.Size, up.ContentType); err != nil {
		return domain.FileRef{}, storageFailed("store artifact", err)
	}
	return domain.FileRef{
		OriginalName: up.Filename,
		StoredName:   storedName,
		URL:          key,
		MimeType:     up.ContentType,
		UploadedAt:   time.Now().UTC(),
	}, nil
}

// deleteArtifact is best effort; an orphaned object is preferable to a
// failed request after the metadata already changed.
func (a *App) deleteArtifact(ctx context.Context, key string) {
	if err := a.objects.Delete(ctx, key); err != nil {
		util.LoggerFromContext(ctx).Warn("delete artifact failed", "key", key, "error", err)
	}
}

func (a *App) publishEvent(ctx context.Context, event domain.Event) {
	if err := a.feed.Publish(ctx, event); err != nil {
		util.LoggerFromContext(ctx).Warn("publish feed event failed", "verb", event.Verb, "project_id", event.ProjectID, "error", err)
	}
}

// artifactName builds a stored name that is unique across uploads but
// keeps the original extension so content types survive round trips.
func artifactName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	var b strings.Builder
	for _, r := range ext {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), b.String())
}

func artifactKey(projectID, storedName string) string {
	return "projects/" + projectID + "/" + storedName
}

func validProjectType(t string) bool {
	for _, pt := range domain.ProjectTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// withMember returns ids with owner present exactly once, dropping
// duplicates and blanks.
func withMember(ids []string, owner string) []string {
	out := make([]string, 0, len(ids)+1)
	seen := map[string]bool{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	add(owner)
	for _, id := range ids {
		add(id)
	}
	return out
}

// normalizeHashtags trims whitespace and a leading "#" but keeps the
// list as given: order and duplicates are part of the data.
func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}
