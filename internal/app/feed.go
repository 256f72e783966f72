package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devhub/pkg/domain"
)

// FeedEntry is one activity item with the actor resolved for display.
type FeedEntry struct {
	ID          string         `json:"id"`
	Actor       domain.Profile `json:"actor"`
	Verb        string         `json:"verb"`
	ProjectID   string         `json:"projectId"`
	ProjectName string         `json:"projectName"`
	Message     string         `json:"message,omitempty"`
	Version     string         `json:"version,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

const feedScanLimit = 200

// HomeFeed returns recent activity by the actor and their friends,
// newest first.
func (a *App) HomeFeed(ctx context.Context, actor domain.User, limit int) ([]FeedEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	friendIDs, err := a.store.ListFriendIDs(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	visible := map[string]bool{actor.ID: true}
	for _, id := range friendIDs {
		visible[id] = true
	}
	events, err := a.feed.Recent(ctx, feedScanLimit)
	if err != nil {
		return nil, storageFailed("read feed", err)
	}
	profiles := map[string]domain.Profile{}
	entries := make([]FeedEntry, 0, limit)
	for _, ev := range events {
		if !visible[ev.ActorID] {
			continue
		}
		profile, ok := profiles[ev.ActorID]
		if !ok {
			user, found, err := a.store.GetUserByID(ev.ActorID)
			if err != nil {
				return nil, fmt.Errorf("fetch user: %w", err)
			}
			if !found {
				continue
			}
			profile = domain.ProfileOf(user)
			profiles[ev.ActorID] = profile
		}
		entries = append(entries, FeedEntry{
			ID:          ev.ID,
			Actor:       profile,
			Verb:        ev.Verb,
			ProjectID:   ev.ProjectID,
			ProjectName: ev.ProjectName,
			Message:     ev.Message,
			Version:     ev.Version,
			CreatedAt:   ev.CreatedAt,
		})
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}

// SearchResults groups global search matches by record type.
type SearchResults struct {
	Users    []domain.Profile `json:"users"`
	Projects []domain.Project `json:"projects"`
	Checkins []domain.Checkin `json:"checkins"`
}

// Search runs one query across users, projects, and check-in messages.
func (a *App) Search(query string) (SearchResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResults{}, invalid("search query required")
	}
	users, err := a.SearchUsers(query)
	if err != nil {
		return SearchResults{}, err
	}
	projects, err := a.store.SearchProjects(query)
	if err != nil {
		return SearchResults{}, fmt.Errorf("search projects: %w", err)
	}
	checkins, err := a.store.SearchCheckins(query)
	if err != nil {
		return SearchResults{}, fmt.Errorf("search checkins: %w", err)
	}
	return SearchResults{
		Users:    users,
		Projects: projects,
		Checkins: checkins,
	}, nil
}

// ProjectTypeList returns the static project classification options.
func (a *App) ProjectTypeList() []string {
	return append([]string(nil), domain.ProjectTypes...)
}
