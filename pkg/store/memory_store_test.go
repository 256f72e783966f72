package store

import (
	"testing"
	"time"

	"devhub/pkg/domain"
)

func testUser(id, username string) domain.User {
	return domain.User{
		ID:       id,
		Username: username,
		Email:    username + "@example.com",
		Role:     domain.RoleUser,
		Status:   domain.StatusActive,
	}
}

func TestMemoryStoreUserLookups(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveUser(testUser("u1", "alice")); err != nil {
		t.Fatalf("save user: %v", err)
	}

	if ok, _ := s.HasUserEmail("alice@example.com"); !ok {
		t.Fatal("email lookup failed")
	}
	if ok, _ := s.HasUsername("alice"); !ok {
		t.Fatal("username lookup failed")
	}
	if _, ok, _ := s.GetUserByEmail("alice@example.com"); !ok {
		t.Fatal("get by email failed")
	}
	if count, _ := s.UserCount(); count != 1 {
		t.Fatalf("count = %d", count)
	}
}

func TestMemoryStoreFriendshipIsSymmetric(t *testing.T) {
	s := NewMemoryStore()
	if err := s.AddFriendship("u1", "u2"); err != nil {
		t.Fatalf("add friendship: %v", err)
	}
	if ok, _ := s.AreFriends("u1", "u2"); !ok {
		t.Fatal("u1-u2 not friends")
	}
	if ok, _ := s.AreFriends("u2", "u1"); !ok {
		t.Fatal("u2-u1 not friends")
	}
	if err := s.RemoveFriendship("u2", "u1"); err != nil {
		t.Fatalf("remove friendship: %v", err)
	}
	if ok, _ := s.AreFriends("u1", "u2"); ok {
		t.Fatal("friendship survived removal")
	}
}

func TestMemoryStoreCommitCheckin(t *testing.T) {
	s := NewMemoryStore()
	project := domain.Project{ID: "p1", Name: "devhub", OwnerID: "u1", CurrentVersion: "1.0.0"}
	if err := s.SaveProject(project); err != nil {
		t.Fatalf("save project: %v", err)
	}

	project.CurrentVersion = "1.1.0"
	checkin := domain.Checkin{ID: "c1", ProjectID: "p1", AuthorID: "u1", Message: "bump", CreatedAt: time.Now()}
	if err := s.CommitCheckin(project, checkin); err != nil {
		t.Fatalf("commit checkin: %v", err)
	}

	got, ok, _ := s.GetProject("p1")
	if !ok || got.CurrentVersion != "1.1.0" {
		t.Fatalf("project = %+v", got)
	}
	checkins, _ := s.ListCheckinsByProject("p1")
	if len(checkins) != 1 || checkins[0].ID != "c1" {
		t.Fatalf("checkins = %+v", checkins)
	}
}

func TestMemoryStoreCheckinsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	for i, id := range []string{"c1", "c2", "c3"} {
		err := s.SaveCheckin(domain.Checkin{
			ID:        id,
			ProjectID: "p1",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("save checkin: %v", err)
		}
	}
	checkins, _ := s.ListCheckinsByProject("p1")
	if len(checkins) != 3 || checkins[0].ID != "c3" || checkins[2].ID != "c1" {
		t.Fatalf("order = %+v", checkins)
	}
}

func TestMemoryStoreSearchIsCaseInsensitive(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveProject(domain.Project{ID: "p1", Name: "Weather Station", Hashtags: []string{"iot"}}); err != nil {
		t.Fatalf("save project: %v", err)
	}
	if err := s.SaveProject(domain.Project{ID: "p2", Name: "todo list"}); err != nil {
		t.Fatalf("save project: %v", err)
	}

	matches, _ := s.SearchProjects("weather")
	if len(matches) != 1 || matches[0].ID != "p1" {
		t.Fatalf("name search = %+v", matches)
	}
	matches, _ = s.SearchProjects("IOT")
	if len(matches) != 1 || matches[0].ID != "p1" {
		t.Fatalf("hashtag search = %+v", matches)
	}
}

func TestMemoryStoreDeleteUserCascades(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveUser(testUser("u1", "alice")); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if err := s.SaveUser(testUser("u2", "bob")); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if err := s.AddFriendship("u1", "u2"); err != nil {
		t.Fatalf("add friendship: %v", err)
	}
	if err := s.SaveFriendRequest(domain.FriendRequest{ID: "r1", FromID: "u2", ToID: "u1", Status: domain.RequestPending}); err != nil {
		t.Fatalf("save request: %v", err)
	}

	if err := s.DeleteUser("u1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, ok, _ := s.GetUserByID("u1"); ok {
		t.Fatal("user survived delete")
	}
	if ok, _ := s.AreFriends("u1", "u2"); ok {
		t.Fatal("friendship survived delete")
	}
	requests, _ := s.ListRequestsFrom("u2")
	if len(requests) != 0 {
		t.Fatalf("requests = %+v", requests)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	project := domain.Project{ID: "p1", Name: "devhub", Files: []domain.FileRef{{OriginalName: "a.go", StoredName: "s1"}}}
	if err := s.SaveProject(project); err != nil {
		t.Fatalf("save project: %v", err)
	}

	got, _, _ := s.GetProject("p1")
	got.Files[0].OriginalName = "mutated"

	again, _, _ := s.GetProject("p1")
	if again.Files[0].OriginalName != "a.go" {
		t.Fatal("store state mutated through a returned copy")
	}
}
