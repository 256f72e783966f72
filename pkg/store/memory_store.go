package store

import (
	"sort"
	"strings"
	"sync"

	"devhub/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development without Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	email       map[string]string // email -> user ID
	username    map[string]string // username -> user ID
	userOrder   []string
	projects    map[string]domain.Project
	projOrder   []string
	checkins    map[string][]domain.Checkin // projectID -> entries, append order
	requests    map[string]domain.FriendRequest
	friendships map[string]map[string]struct{} // userID -> friend IDs
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		email:       make(map[string]string),
		username:    make(map[string]string),
		projects:    make(map[string]domain.Project),
		checkins:    make(map[string][]domain.Checkin),
		requests:    make(map[string]domain.FriendRequest),
		friendships: make(map[string]map[string]struct{}),
	}
}

// users

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, exists := m.users[u.ID]; exists {
		delete(m.email, old.Email)
		delete(m.username, old.Username)
	} else {
		m.userOrder = append(m.userOrder, u.ID)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	m.username[u.Username] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) HasUsername(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.username[username]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]domain.User, 0, len(m.userOrder))
	for _, id := range m.userOrder {
		if u, ok := m.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (m *MemoryStore) SearchUsers(query string) ([]domain.User, error) {
	q := strings.ToLower(query)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []domain.User
	for _, id := range m.userOrder {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		if containsFold(u.Username, q) || containsFold(u.FirstName, q) ||
			containsFold(u.LastName, q) || containsFold(u.Email, q) {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })
	return matched, nil
}

func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	delete(m.users, id)
	delete(m.email, u.Email)
	delete(m.username, u.Username)
	for friend := range m.friendships[id] {
		delete(m.friendships[friend], id)
	}
	delete(m.friendships, id)
	for rid, r := range m.requests {
		if r.FromID == id || r.ToID == id {
			delete(m.requests, rid)
		}
	}
	return nil
}

// friendships

func (m *MemoryStore) SaveFriendRequest(r domain.FriendRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryStore) GetFriendRequest(id string) (domain.FriendRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	return r, ok, nil
}

func (m *MemoryStore) HasPendingRequestBetween(a, b string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.Status != domain.RequestPending {
			continue
		}
		if (r.FromID == a && r.ToID == b) || (r.FromID == b && r.ToID == a) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListRequestsTo(userID string) ([]domain.FriendRequest, error) {
	return m.listRequests(func(r domain.FriendRequest) bool { return r.ToID == userID })
}

func (m *MemoryStore) ListRequestsFrom(userID string) ([]domain.FriendRequest, error) {
	return m.listRequests(func(r domain.FriendRequest) bool { return r.FromID == userID })
}

func (m *MemoryStore) listRequests(match func(domain.FriendRequest) bool) ([]domain.FriendRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.FriendRequest
	for _, r := range m.requests {
		if r.Status == domain.RequestPending && match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteFriendRequest(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.requests, id)
	return nil
}

func (m *MemoryStore) AddFriendship(a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.friendships[a] == nil {
		m.friendships[a] = make(map[string]struct{})
	}
	if m.friendships[b] == nil {
		m.friendships[b] = make(map[string]struct{})
	}
	m.friendships[a][b] = struct{}{}
	m.friendships[b][a] = struct{}{}
	return nil
}

func (m *MemoryStore) RemoveFriendship(a, b string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.friendships[a], b)
	delete(m.friendships[b], a)
	return nil
}

func (m *MemoryStore) AreFriends(a, b string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.friendships[a][b]
	return ok, nil
}

func (m *MemoryStore) ListFriendIDs(userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.friendships[userID]))
	for id := range m.friendships[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// projects

func (m *MemoryStore) SaveProject(p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveProjectLocked(p)
	return nil
}

func (m *MemoryStore) saveProjectLocked(p domain.Project) {
	if _, exists := m.projects[p.ID]; !exists {
		m.projOrder = append(m.projOrder, p.ID)
	}
	m.projects[p.ID] = cloneProject(p)
}

func (m *MemoryStore) GetProject(id string) (domain.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, false, nil
	}
	return cloneProject(p), true, nil
}

func (m *MemoryStore) ListProjects() ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	projects := make([]domain.Project, 0, len(m.projOrder))
	for i := len(m.projOrder) - 1; i >= 0; i-- {
		if p, ok := m.projects[m.projOrder[i]]; ok {
			projects = append(projects, cloneProject(p))
		}
	}
	return projects, nil
}

func (m *MemoryStore) SearchProjects(query string) ([]domain.Project, error) {
	q := strings.ToLower(query)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []domain.Project
	for i := len(m.projOrder) - 1; i >= 0; i-- {
		p, ok := m.projects[m.projOrder[i]]
		if !ok {
			continue
		}
		if containsFold(p.Name, q) || containsFold(p.Description, q) || containsFold(p.ProjectType, q) {
			matched = append(matched, cloneProject(p))
			continue
		}
		for _, tag := range p.Hashtags {
			if containsFold(tag, q) {
				matched = append(matched, cloneProject(p))
				break
			}
		}
	}
	return matched, nil
}

func (m *MemoryStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

// check-in ledger

func (m *MemoryStore) SaveCheckin(c domain.Checkin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkins[c.ProjectID] = append(m.checkins[c.ProjectID], cloneCheckin(c))
	return nil
}

func (m *MemoryStore) ListCheckinsByProject(projectID string) ([]domain.Checkin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.checkins[projectID]
	out := make([]domain.Checkin, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, cloneCheckin(entries[i]))
	}
	return out, nil
}

func (m *MemoryStore) SearchCheckins(query string) ([]domain.Checkin, error) {
	q := strings.ToLower(query)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []domain.Checkin
	for _, entries := range m.checkins {
		for _, c := range entries {
			if containsFold(c.Message, q) {
				matched = append(matched, cloneCheckin(c))
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return matched, nil
}

func (m *MemoryStore) DeleteCheckinsByProject(projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkins, projectID)
	return nil
}

// CommitCheckin performs the ledger append and project replace under
// one lock so readers never observe the halfway state.
func (m *MemoryStore) CommitCheckin(project domain.Project, checkin domain.Checkin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkins[checkin.ProjectID] = append(m.checkins[checkin.ProjectID], cloneCheckin(checkin))
	m.saveProjectLocked(project)
	return nil
}

func cloneProject(p domain.Project) domain.Project {
	out := p
	out.MemberIDs = append([]string(nil), p.MemberIDs...)
	out.Hashtags = append([]string(nil), p.Hashtags...)
	out.Files = append([]domain.FileRef(nil), p.Files...)
	if p.Lock != nil {
		lock := *p.Lock
		out.Lock = &lock
	}
	return out
}

func cloneCheckin(c domain.Checkin) domain.Checkin {
	out := c
	out.Files = append([]domain.FileRef(nil), c.Files...)
	return out
}

func containsFold(s, loweredQuery string) bool {
	return strings.Contains(strings.ToLower(s), loweredQuery)
}
