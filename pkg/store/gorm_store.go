package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"devhub/pkg/domain"
)

const migrateLockID int64 = 48151623

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ProjectModel{},
			&CheckinModel{},
			&FriendRequestModel{},
			&FriendshipModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// withMigrationLock serializes migrations across instances with a
// transaction-scoped Postgres advisory lock.
func withMigrationLock(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		return fn(tx)
	})
}

// users

func (s *GormStore) SaveUser(u domain.User) error {
	model := toUserModel(u)
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count by email: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) HasUsername(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count by username: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.Where("email = ?", email).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("get user by email: %w", err)
	}
	return fromUserModel(model), true, nil
}

func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("get user: %w", err)
	}
	return fromUserModel(model), true, nil
}

func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at asc").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, fromUserModel(m))
	}
	return users, nil
}

func (s *GormStore) SearchUsers(query string) ([]domain.User, error) {
	pattern := "%" + query + "%"
	var models []UserModel
	err := s.db.
		Where("username ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?",
			pattern, pattern, pattern, pattern).
		Order("username asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, fromUserModel(m))
	}
	return users, nil
}

func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(count), nil
}

func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? OR friend_id = ?", id, id).Delete(&FriendshipModel{}).Error; err != nil {
			return fmt.Errorf("delete friendships: %w", err)
		}
		if err := tx.Where("from_id = ? OR to_id = ?", id, id).Delete(&FriendRequestModel{}).Error; err != nil {
			return fmt.Errorf("delete friend requests: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&UserModel{}).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// friendships

func (s *GormStore) SaveFriendRequest(r domain.FriendRequest) error {
	model := FriendRequestModel{
		ID:        r.ID,
		FromID:    r.FromID,
		ToID:      r.ToID,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save friend request: %w", err)
	}
	return nil
}

func (s *GormStore) GetFriendRequest(id string) (domain.FriendRequest, bool, error) {
	var model FriendRequestModel
	err := s.db.Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.FriendRequest{}, false, nil
	}
	if err != nil {
		return domain.FriendRequest{}, false, fmt.Errorf("get friend request: %w", err)
	}
	return fromFriendRequestModel(model), true, nil
}

func (s *GormStore) HasPendingRequestBetween(a, b string) (bool, error) {
	var count int64
	err := s.db.Model(&FriendRequestModel{}).
		Where("status = ?", string(domain.RequestPending)).
		Where("(from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count pending requests: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) ListRequestsTo(userID string) ([]domain.FriendRequest, error) {
	return s.listRequests("to_id = ?", userID)
}

func (s *GormStore) ListRequestsFrom(userID string) ([]domain.FriendRequest, error) {
	return s.listRequests("from_id = ?", userID)
}

func (s *GormStore) listRequests(cond, userID string) ([]domain.FriendRequest, error) {
	var models []FriendRequestModel
	err := s.db.
		Where(cond, userID).
		Where("status = ?", string(domain.RequestPending)).
		Order("created_at desc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	requests := make([]domain.FriendRequest, 0, len(models))
	for _, m := range models {
		requests = append(requests, fromFriendRequestModel(m))
	}
	return requests, nil
}

func (s *GormStore) DeleteFriendRequest(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&FriendRequestModel{}).Error; err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

func (s *GormStore) AddFriendship(a, b string) error {
	now := time.Now().UTC()
	rows := []FriendshipModel{
		{UserID: a, FriendID: b, CreatedAt: now},
		{UserID: b, FriendID: a, CreatedAt: now},
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			// Save-on-conflict keeps AddFriendship idempotent.
			if err := tx.Where("user_id = ? AND friend_id = ?", row.UserID, row.FriendID).
				FirstOrCreate(&row).Error; err != nil {
				return fmt.Errorf("add friendship: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) RemoveFriendship(a, b string) error {
	err := s.db.
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", a, b, b, a).
		Delete(&FriendshipModel{}).Error
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	return nil
}

func (s *GormStore) AreFriends(a, b string) (bool, error) {
	var count int64
	err := s.db.Model(&FriendshipModel{}).
		Where("user_id = ? AND friend_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count friendship: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) ListFriendIDs(userID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&FriendshipModel{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	return ids, nil
}

// projects

func (s *GormStore) SaveProject(p domain.Project) error {
	model, err := toProjectModel(p)
	if err != nil {
		return err
	}
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

func (s *GormStore) GetProject(id string) (domain.Project, bool, error) {
	var model ProjectModel
	err := s.db.Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Project{}, false, nil
	}
	if err != nil {
		return domain.Project{}, false, fmt.Errorf("get project: %w", err)
	}
	project, err := fromProjectModel(model)
	if err != nil {
		return domain.Project{}, false, err
	}
	return project, true, nil
}

func (s *GormStore) ListProjects() ([]domain.Project, error) {
	var models []ProjectModel
	if err := s.db.Order("created_at desc").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return fromProjectModels(models)
}

func (s *GormStore) SearchProjects(query string) ([]domain.Project, error) {
	pattern := "%" + query + "%"
	var models []ProjectModel
	err := s.db.
		Where("name ILIKE ? OR description ILIKE ? OR project_type ILIKE ? OR hashtags::text ILIKE ?",
			pattern, pattern, pattern, pattern).
		Order("created_at desc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}
	return fromProjectModels(models)
}

func (s *GormStore) DeleteProject(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&ProjectModel{}).Error; err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// check-in ledger

func (s *GormStore) SaveCheckin(c domain.Checkin) error {
	model, err := toCheckinModel(c)
	if err != nil {
		return err
	}
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("save checkin: %w", err)
	}
	return nil
}

func (s *GormStore) ListCheckinsByProject(projectID string) ([]domain.Checkin, error) {
	var models []CheckinModel
	err := s.db.
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	return fromCheckinModels(models)
}

func (s *GormStore) SearchCheckins(query string) ([]domain.Checkin, error) {
	pattern := "%" + query + "%"
	var models []CheckinModel
	err := s.db.
		Where("message ILIKE ?", pattern).
		Order("created_at desc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("search checkins: %w", err)
	}
	return fromCheckinModels(models)
}

func (s *GormStore) DeleteCheckinsByProject(projectID string) error {
	if err := s.db.Where("project_id = ?", projectID).Delete(&CheckinModel{}).Error; err != nil {
		return fmt.Errorf("delete checkins: %w", err)
	}
	return nil
}

// CommitCheckin appends the ledger entry and replaces the project
// record in one transaction.
func (s *GormStore) CommitCheckin(project domain.Project, checkin domain.Checkin) error {
	projectModel, err := toProjectModel(project)
	if err != nil {
		return err
	}
	checkinModel, err := toCheckinModel(checkin)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&checkinModel).Error; err != nil {
			return fmt.Errorf("append checkin: %w", err)
		}
		if err := tx.Save(&projectModel).Error; err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		return nil
	})
}

// model conversions

func toUserModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ProfileImage: u.ProfileImage,
		Role:         string(u.Role),
		Status:       string(u.Status),
		Verified:     u.Verified,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromUserModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		ProfileImage: m.ProfileImage,
		Role:         domain.UserRole(m.Role),
		Status:       domain.UserStatus(m.Status),
		Verified:     m.Verified,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func fromFriendRequestModel(m FriendRequestModel) domain.FriendRequest {
	return domain.FriendRequest{
		ID:        m.ID,
		FromID:    m.FromID,
		ToID:      m.ToID,
		Status:    domain.FriendRequestStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toProjectModel(p domain.Project) (ProjectModel, error) {
	members, err := marshalJSON(p.MemberIDs)
	if err != nil {
		return ProjectModel{}, fmt.Errorf("encode members: %w", err)
	}
	hashtags, err := marshalJSON(p.Hashtags)
	if err != nil {
		return ProjectModel{}, fmt.Errorf("encode hashtags: %w", err)
	}
	files, err := marshalJSON(p.Files)
	if err != nil {
		return ProjectModel{}, fmt.Errorf("encode files: %w", err)
	}
	model := ProjectModel{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		OwnerID:        p.OwnerID,
		MemberIDs:      members,
		ProjectType:    p.ProjectType,
		Hashtags:       hashtags,
		CurrentVersion: p.CurrentVersion,
		Files:          files,
		ImageURL:       p.ImageURL,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.Lock != nil {
		acquiredAt := p.Lock.AcquiredAt
		model.IsCheckedOut = true
		model.CheckedOutBy = p.Lock.HolderID
		model.CheckedOutAt = &acquiredAt
	}
	return model, nil
}

func fromProjectModel(m ProjectModel) (domain.Project, error) {
	project := domain.Project{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		OwnerID:        m.OwnerID,
		ProjectType:    m.ProjectType,
		CurrentVersion: m.CurrentVersion,
		ImageURL:       m.ImageURL,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if err := unmarshalJSON(m.MemberIDs, &project.MemberIDs); err != nil {
		return domain.Project{}, fmt.Errorf("decode members: %w", err)
	}
	if err := unmarshalJSON(m.Hashtags, &project.Hashtags); err != nil {
		return domain.Project{}, fmt.Errorf("decode hashtags: %w", err)
	}
	if err := unmarshalJSON(m.Files, &project.Files); err != nil {
		return domain.Project{}, fmt.Errorf("decode files: %w", err)
	}
	if m.IsCheckedOut && m.CheckedOutBy != "" {
		lock := domain.Lock{HolderID: m.CheckedOutBy}
		if m.CheckedOutAt != nil {
			lock.AcquiredAt = *m.CheckedOutAt
		}
		project.Lock = &lock
	}
	return project, nil
}

func fromProjectModels(models []ProjectModel) ([]domain.Project, error) {
	projects := make([]domain.Project, 0, len(models))
	for _, m := range models {
		p, err := fromProjectModel(m)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func toCheckinModel(c domain.Checkin) (CheckinModel, error) {
	files, err := marshalJSON(c.Files)
	if err != nil {
		return CheckinModel{}, fmt.Errorf("encode checkin files: %w", err)
	}
	return CheckinModel{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		AuthorID:  c.AuthorID,
		Message:   c.Message,
		Version:   c.Version,
		Files:     files,
		CreatedAt: c.CreatedAt,
	}, nil
}

func fromCheckinModels(models []CheckinModel) ([]domain.Checkin, error) {
	checkins := make([]domain.Checkin, 0, len(models))
	for _, m := range models {
		c := domain.Checkin{
			ID:        m.ID,
			ProjectID: m.ProjectID,
			AuthorID:  m.AuthorID,
			Message:   m.Message,
			Version:   m.Version,
			CreatedAt: m.CreatedAt,
		}
		if err := unmarshalJSON(m.Files, &c.Files); err != nil {
			return nil, fmt.Errorf("decode checkin files: %w", err)
		}
		checkins = append(checkins, c)
	}
	return checkins, nil
}

func marshalJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func unmarshalJSON(data datatypes.JSON, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
