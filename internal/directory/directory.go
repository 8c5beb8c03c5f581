// Package directory 영속 계층 - rooms, memberships, users, canvas versions.
// 실시간 세션 상태는 canvas 패키지가 메모리에 들고, 여기는 DB에 남는 것만 다룬다.
package directory

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"canvas-backend/internal/model"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrVersionNotFound = errors.New("canvas version not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateUser   = errors.New("username or email already in use")
	ErrNotCreator      = errors.New("only the creator can delete a version")
)

// Service wraps the database for everything the session layer and the REST
// handlers need to persist.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// =============================================================================
// Users
// =============================================================================

func (s *Service) CreateUser(username, email, passwordHash string) (*model.User, error) {
	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}

	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *Service) FindUserByUsername(username string) (*model.User, error) {
	var user model.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Service) FindUserByEmail(email string) (*model.User, error) {
	var user model.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// =============================================================================
// Rooms & membership
// =============================================================================

func (s *Service) CreateRoom(roomID, name, ownerName string) (*model.Room, error) {
	room := &model.Room{
		ID:        roomID,
		Name:      name,
		OwnerName: ownerName,
	}

	if err := s.db.Create(room).Error; err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	log.Printf("[Directory] Created room %s (owner: %s)", roomID, ownerName)
	return room, nil
}

// EnsureRoom 방이 없으면 생성 - 소켓으로 처음 보는 roomId가 들어와도 세션을 열어준다
func (s *Service) EnsureRoom(roomID string) (*model.Room, error) {
	var room model.Room
	err := s.db.Where(model.Room{ID: roomID}).
		Attrs(model.Room{Name: roomID}).
		FirstOrCreate(&room).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *Service) GetRoom(roomID string) (*model.Room, error) {
	var room model.Room
	if err := s.db.Where("id = ?", roomID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (s *Service) ListRooms() ([]model.Room, error) {
	var rooms []model.Room
	if err := s.db.Order("created_at DESC").Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *Service) DeleteRoom(roomID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&model.RoomMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", roomID).Delete(&model.CanvasVersion{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", roomID).Delete(&model.Room{}).Error
	})
}

// SetRoomOwner 방장 지정/해제. ownerName이 빈 문자열이면 방장 없음 상태.
func (s *Service) SetRoomOwner(roomID, ownerName string) error {
	res := s.db.Model(&model.Room{}).Where("id = ?", roomID).Update("owner_name", ownerName)
	if res.Error != nil {
		return fmt.Errorf("failed to set owner of room %s: %w", roomID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// AddRoomMember records a durable membership. Re-joining is not an error.
func (s *Service) AddRoomMember(roomID, username string) error {
	member := model.RoomMember{
		RoomID:   roomID,
		Username: username,
		JoinedAt: time.Now(),
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "username"}},
		DoNothing: true,
	}).Create(&member).Error
	if err != nil {
		return fmt.Errorf("failed to add member %s to room %s: %w", username, roomID, err)
	}
	return nil
}

func (s *Service) RemoveRoomMember(roomID, username string) error {
	return s.db.Where("room_id = ? AND username = ?", roomID, username).
		Delete(&model.RoomMember{}).Error
}

func (s *Service) ListRoomMembers(roomID string) ([]model.RoomMember, error) {
	var members []model.RoomMember
	if err := s.db.Where("room_id = ?", roomID).Order("joined_at ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// =============================================================================
// Canvas versions
// =============================================================================

func (s *Service) CreateVersion(roomID, creatorName, versionName string, history model.History) (*model.CanvasVersion, error) {
	version := &model.CanvasVersion{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		CreatorName: creatorName,
		VersionName: versionName,
	}
	if err := version.SetHistory(history); err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}

	if err := s.db.Create(version).Error; err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	log.Printf("[Directory] Saved version %q (%s) for room %s, %d strokes",
		versionName, version.ID, roomID, len(history))
	return version, nil
}

func (s *Service) GetVersion(versionID string) (*model.CanvasVersion, error) {
	var version model.CanvasVersion
	if err := s.db.Where("id = ?", versionID).First(&version).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, err
	}
	return &version, nil
}

// ListVersions 최신순 버전 목록. HistoryData는 무거우니 목록에는 싣지 않는다.
func (s *Service) ListVersions(roomID string) ([]model.VersionSummary, error) {
	var summaries []model.VersionSummary
	err := s.db.Model(&model.CanvasVersion{}).
		Select("id", "version_name", "creator_name", "created_at").
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// DeleteVersion removes a snapshot. Only its creator may delete it.
func (s *Service) DeleteVersion(versionID, requester string) error {
	version, err := s.GetVersion(versionID)
	if err != nil {
		return err
	}
	if version.CreatorName != requester {
		return ErrNotCreator
	}

	return s.db.Where("id = ?", versionID).Delete(&model.CanvasVersion{}).Error
}
