package directory

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HeadshotListener is notified when a saved profile changes its headshot.
type HeadshotListener func(ctx context.Context, userID int64, headshotRef string) error

type profileRecord struct {
	UserID                int64                        `gorm:"primaryKey;autoIncrement:false"`
	FirstName             string                       `gorm:"size:120"`
	LastName              string                       `gorm:"size:120"`
	Email                 string                       `gorm:"size:255"`
	Phone                 string                       `gorm:"size:40"`
	JobTitle              string                       `gorm:"size:120"`
	HeadshotRef           string                       `gorm:"size:512"`
	Roles                 datatypes.JSONType[[]string] `gorm:"not null"`
	AssignedLoanOfficerID int64                        `gorm:"index"`
	UpdatedAt             time.Time
}

func (profileRecord) TableName() string {
	return "profiles"
}

type groupMember struct {
	GroupID int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID  int64 `gorm:"primaryKey;autoIncrement:false"`
}

func (groupMember) TableName() string {
	return "group_members"
}

// GormDirectory is a directory backed by local tables, used when no remote directory is configured.
type GormDirectory struct {
	db       *gorm.DB
	logger   *logrus.Logger
	listener HeadshotListener
}

var _ Directory = (*GormDirectory)(nil)

// NewGormDirectory constructs a local directory.
func NewGormDirectory(db *gorm.DB, logger *logrus.Logger) (*GormDirectory, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}
	return &GormDirectory{db: db, logger: logger}, nil
}

// OnHeadshotChange registers the listener invoked after a headshot changes.
func (d *GormDirectory) OnHeadshotChange(listener HeadshotListener) {
	d.listener = listener
}

// Migrate creates the directory tables.
func (d *GormDirectory) Migrate(ctx context.Context) error {
	if err := d.db.WithContext(ctx).AutoMigrate(&profileRecord{}, &groupMember{}); err != nil {
		return eris.Wrap(err, "auto migrating directory schema")
	}
	return nil
}

// GetProfile loads a profile by user id.
func (d *GormDirectory) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	var record profileRecord
	if err := d.db.WithContext(ctx).First(&record, "user_id = ?", userID).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return Profile{}, eris.Wrapf(ErrProfileNotFound, "user %d", userID)
		}
		return Profile{}, eris.Wrapf(err, "loading profile %d", userID)
	}
	return record.toProfile(), nil
}

// IsAdministrator checks the administrator role.
func (d *GormDirectory) IsAdministrator(ctx context.Context, userID int64) (bool, error) {
	profile, err := d.GetProfile(ctx, userID)
	if err != nil {
		if eris.Is(err, ErrProfileNotFound) {
			return false, nil
		}
		return false, err
	}
	return profile.HasRole(RoleAdministrator), nil
}

// IsGroupMember checks the group_members table.
func (d *GormDirectory) IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&groupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, eris.Wrapf(err, "checking membership of user %d in group %d", userID, groupID)
	}
	return count > 0, nil
}

// SaveProfile upserts a profile and notifies the listener when the headshot changed.
func (d *GormDirectory) SaveProfile(ctx context.Context, profile Profile) error {
	if profile.UserID <= 0 {
		return eris.New("profile user id is required")
	}

	previous, err := d.GetProfile(ctx, profile.UserID)
	isNew := eris.Is(err, ErrProfileNotFound)
	if err != nil && !isNew {
		return err
	}

	record := fromProfile(profile)
	err = d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&record).Error
	if err != nil {
		return eris.Wrapf(err, "saving profile %d", profile.UserID)
	}

	changed := strings.TrimSpace(profile.HeadshotRef) != strings.TrimSpace(previous.HeadshotRef)
	if !isNew && changed && d.listener != nil {
		if err := d.listener(ctx, profile.UserID, profile.HeadshotRef); err != nil {
			if d.logger != nil {
				d.logger.WithFields(logrus.Fields{"user_id": profile.UserID, "error": err.Error()}).
					Error("propagating headshot change")
			}
			return eris.Wrapf(err, "propagating headshot change for user %d", profile.UserID)
		}
	}

	return nil
}

// AddGroupMember records a group membership.
func (d *GormDirectory) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	member := groupMember{GroupID: groupID, UserID: userID}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
	if err != nil {
		return eris.Wrapf(err, "adding user %d to group %d", userID, groupID)
	}
	return nil
}

// RemoveGroupMember deletes a group membership.
func (d *GormDirectory) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	err := d.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&groupMember{}).Error
	if err != nil {
		return eris.Wrapf(err, "removing user %d from group %d", userID, groupID)
	}
	return nil
}

func (r profileRecord) toProfile() Profile {
	return Profile{
		UserID:                r.UserID,
		FirstName:             r.FirstName,
		LastName:              r.LastName,
		Email:                 r.Email,
		Phone:                 r.Phone,
		JobTitle:              r.JobTitle,
		HeadshotRef:           r.HeadshotRef,
		Roles:                 r.Roles.Data(),
		AssignedLoanOfficerID: r.AssignedLoanOfficerID,
	}
}

func fromProfile(p Profile) profileRecord {
	return profileRecord{
		UserID:                p.UserID,
		FirstName:             strings.TrimSpace(p.FirstName),
		LastName:              strings.TrimSpace(p.LastName),
		Email:                 strings.TrimSpace(p.Email),
		Phone:                 strings.TrimSpace(p.Phone),
		JobTitle:              strings.TrimSpace(p.JobTitle),
		HeadshotRef:           strings.TrimSpace(p.HeadshotRef),
		Roles:                 datatypes.NewJSONType(p.Roles),
		AssignedLoanOfficerID: p.AssignedLoanOfficerID,
	}
}
