package models

import (
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A RemoteFollow is a local user's follow of a remote actor. It is
// created pending when the Follow is sent and flips to accepted or
// rejected when the peer answers.
type RemoteFollow struct {
	ID           snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserID       snowflake.ID `gorm:"uniqueIndex:idx_remote_follow;not null"`
	User         *User        `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	RemoteUserID snowflake.ID `gorm:"uniqueIndex:idx_remote_follow;not null"`
	RemoteUser   *RemoteUser  `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	// ActivityURI is the id of the Follow we sent; Accept and Reject
	// answers reference it.
	ActivityURI string `gorm:"size:255;index;not null"`
	Accepted    bool
	Rejected    bool
}

// Pending reports whether the peer has not answered yet.
func (f *RemoteFollow) Pending() bool {
	return !f.Accepted && !f.Rejected
}

// A RemoteFollower is a remote actor following a local user, created when
// an inbound Follow is auto-accepted.
type RemoteFollower struct {
	ID           snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt    time.Time
	UserID       snowflake.ID `gorm:"uniqueIndex:idx_remote_follower;not null"`
	User         *User        `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	RemoteUserID snowflake.ID `gorm:"uniqueIndex:idx_remote_follower;not null"`
	RemoteUser   *RemoteUser  `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	// ActivityURI is the id of the remote Follow, matched by Undo.
	ActivityURI string `gorm:"size:255;index"`
}

// A Boost is a remote actor's Announce of a local post.
type Boost struct {
	ID           snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt    time.Time
	PostID       snowflake.ID `gorm:"uniqueIndex:idx_boost_post_actor;not null"`
	Post         *Post        `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	RemoteUserID snowflake.ID `gorm:"uniqueIndex:idx_boost_post_actor;not null"`
	RemoteUser   *RemoteUser  `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	ActivityURI  string       `gorm:"size:255;index"`
}

type RemoteFollows struct {
	db *gorm.DB
}

func NewRemoteFollows(db *gorm.DB) *RemoteFollows {
	return &RemoteFollows{db: db}
}

// Create records a pending outbound follow. Repeating an existing
// user/target pair keeps the row but stores the new Follow's id, so the
// Accept the peer sends back still matches, and clears any earlier
// rejection.
func (r *RemoteFollows) Create(user *User, target *RemoteUser, activityURI string) (*RemoteFollow, error) {
	follow := RemoteFollow{
		ID:           snowflake.Now(),
		UserID:       user.ID,
		RemoteUserID: target.ID,
		ActivityURI:  activityURI,
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "remote_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"activity_uri", "rejected", "updated_at"}),
	}).Create(&follow).Error
	if err != nil {
		return nil, err
	}
	var row RemoteFollow
	return &row, r.db.Take(&row, "user_id = ? AND remote_user_id = ?", user.ID, target.ID).Error
}

// FindByActivityURI finds the outbound follow an Accept or Reject
// references.
func (r *RemoteFollows) FindByActivityURI(uri string) (*RemoteFollow, error) {
	var follow RemoteFollow
	return &follow, r.db.Preload("User").Preload("RemoteUser").Take(&follow, "activity_uri = ?", uri).Error
}

// Accept marks the follow accepted.
func (r *RemoteFollows) Accept(follow *RemoteFollow) error {
	return r.db.Model(follow).Updates(map[string]any{"accepted": true, "rejected": false}).Error
}

// Reject marks the follow rejected.
func (r *RemoteFollows) Reject(follow *RemoteFollow) error {
	return r.db.Model(follow).Updates(map[string]any{"accepted": false, "rejected": true}).Error
}

// AcceptedForUser returns the remote actors the user follows whose
// follows were accepted.
func (r *RemoteFollows) AcceptedForUser(userID snowflake.ID) ([]*RemoteFollow, error) {
	var follows []*RemoteFollow
	err := r.db.Preload("RemoteUser").Where("user_id = ? AND accepted = ?", userID, true).Find(&follows).Error
	return follows, err
}

type RemoteFollowers struct {
	db *gorm.DB
}

func NewRemoteFollowers(db *gorm.DB) *RemoteFollowers {
	return &RemoteFollowers{db: db}
}

// Create records a remote follower. A duplicate Follow from the same
// actor is a no-op.
func (r *RemoteFollowers) Create(user *User, follower *RemoteUser, activityURI string) error {
	row := RemoteFollower{
		ID:           snowflake.Now(),
		UserID:       user.ID,
		RemoteUserID: follower.ID,
		ActivityURI:  activityURI,
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// Remove deletes the follower relationship, if present.
func (r *RemoteFollowers) Remove(userID, remoteUserID snowflake.ID) error {
	return r.db.Where("user_id = ? AND remote_user_id = ?", userID, remoteUserID).Delete(&RemoteFollower{}).Error
}

// RemoveByActivityURI removes the follower relationship by the original
// Follow activity's id.
func (r *RemoteFollowers) RemoveByActivityURI(remoteUserID snowflake.ID, activityURI string) error {
	return r.db.Where("remote_user_id = ? AND activity_uri = ?", remoteUserID, activityURI).Delete(&RemoteFollower{}).Error
}

// ForUser returns the user's remote followers with their cached profiles.
func (r *RemoteFollowers) ForUser(userID snowflake.ID) ([]*RemoteFollower, error) {
	var followers []*RemoteFollower
	err := r.db.Preload("RemoteUser").Where("user_id = ?", userID).Find(&followers).Error
	return followers, err
}

// CountForUser returns the number of remote followers of the user.
func (r *RemoteFollowers) CountForUser(userID snowflake.ID) (int64, error) {
	var count int64
	return count, r.db.Model(&RemoteFollower{}).Where("user_id = ?", userID).Count(&count).Error
}

type Boosts struct {
	db *gorm.DB
}

func NewBoosts(db *gorm.DB) *Boosts {
	return &Boosts{db: db}
}

// Create records a boost; a repeat Announce from the same actor is a
// no-op.
func (b *Boosts) Create(post *Post, actor *RemoteUser, activityURI string) error {
	boost := Boost{
		ID:           snowflake.Now(),
		PostID:       post.ID,
		RemoteUserID: actor.ID,
		ActivityURI:  activityURI,
	}
	return b.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&boost).Error
}

// Undo removes the actor's boost of the post, if one exists.
func (b *Boosts) Undo(postID, remoteUserID snowflake.ID) error {
	return b.db.Where("post_id = ? AND remote_user_id = ?", postID, remoteUserID).Delete(&Boost{}).Error
}

// UndoByActivityURI removes the actor's boost by the original Announce
// activity's id.
func (b *Boosts) UndoByActivityURI(remoteUserID snowflake.ID, activityURI string) error {
	return b.db.Where("remote_user_id = ? AND activity_uri = ?", remoteUserID, activityURI).Delete(&Boost{}).Error
}
