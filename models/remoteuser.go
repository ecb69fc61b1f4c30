package models

import (
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A RemoteUser is the cached profile of an actor on a peer instance.
type RemoteUser struct {
	ID          snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ActorURI    string        `gorm:"size:255;uniqueIndex;not null"`
	Username    string        `gorm:"size:64;not null"`
	Domain      string        `gorm:"size:255;index;not null"`
	InstanceID  *snowflake.ID `gorm:"index"`
	Instance    *RemoteInstance
	DisplayName string `gorm:"size:128"`
	Summary     string `gorm:"type:text"`
	AvatarURL   string `gorm:"size:255"`
	InboxURL    string `gorm:"size:255;not null"`
	// SharedInboxURL is empty when the peer advertises no shared inbox.
	SharedInboxURL string `gorm:"size:255"`
	OutboxURL      string `gorm:"size:255"`
	PublicKey      []byte
	FetchedAt      time.Time
}

// Acct returns the user@domain handle.
func (u *RemoteUser) Acct() string {
	return u.Username + "@" + u.Domain
}

// DeliveryInbox returns the inbox delivery should target, preferring the
// instance-wide shared inbox when the peer has one.
func (u *RemoteUser) DeliveryInbox() string {
	if u.SharedInboxURL != "" {
		return u.SharedInboxURL
	}
	return u.InboxURL
}

type RemoteUsers struct {
	db *gorm.DB
}

func NewRemoteUsers(db *gorm.DB) *RemoteUsers {
	return &RemoteUsers{db: db}
}

// FindByURI finds a cached remote actor by its canonical URI.
func (r *RemoteUsers) FindByURI(uri string) (*RemoteUser, error) {
	var user RemoteUser
	return &user, r.db.Preload("Instance").Take(&user, "actor_uri = ?", uri).Error
}

// Find finds a cached remote actor by handle.
func (r *RemoteUsers) Find(username, domain string) (*RemoteUser, error) {
	var user RemoteUser
	return &user, r.db.Preload("Instance").Take(&user, "username = ? AND domain = ?", username, domain).Error
}

// Upsert inserts or refreshes a cached actor keyed by its actor URI, and
// keeps the owning instance's last-seen time and user count current.
func (r *RemoteUsers) Upsert(user *RemoteUser) (*RemoteUser, error) {
	instances := NewRemoteInstances(r.db)
	instance, err := instances.FindOrCreate(user.Domain)
	if err != nil {
		return nil, err
	}
	user.InstanceID = &instance.ID
	if user.ID == 0 {
		user.ID = snowflake.Now()
	}
	user.FetchedAt = time.Now()
	err = r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "actor_uri"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"username", "domain", "instance_id", "display_name", "summary",
			"avatar_url", "inbox_url", "shared_inbox_url", "outbox_url",
			"public_key", "fetched_at", "updated_at",
		}),
	}).Create(user).Error
	if err != nil {
		return nil, err
	}
	// read back the winning row into a fresh struct; reusing user would
	// carry the minted ID into the conditions when the insert lost
	var saved RemoteUser
	if err := r.db.Take(&saved, "actor_uri = ?", user.ActorURI).Error; err != nil {
		return nil, err
	}
	*user = saved
	if err := instances.Touch(instance); err != nil {
		return nil, err
	}
	if user.SharedInboxURL != "" && user.SharedInboxURL != instance.SharedInboxURL {
		if err := r.db.Model(instance).Update("shared_inbox_url", user.SharedInboxURL).Error; err != nil {
			return nil, err
		}
	}
	var count int64
	if err := r.db.Model(&RemoteUser{}).Where("instance_id = ?", instance.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	return user, r.db.Model(instance).Update("user_count", count).Error
}

// StalerThan returns cached actors last refreshed before cutoff, oldest
// first, capped at limit.
func (r *RemoteUsers) StalerThan(cutoff time.Time, limit int) ([]*RemoteUser, error) {
	var users []*RemoteUser
	err := r.db.Where("fetched_at < ?", cutoff).Order("fetched_at asc").Limit(limit).Find(&users).Error
	return users, err
}
