package models

import (
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A Like is a remote actor's Like of a local post.
type Like struct {
	ID           snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt    time.Time
	PostID       snowflake.ID `gorm:"uniqueIndex:idx_like_post_actor;not null"`
	Post         *Post        `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	RemoteUserID snowflake.ID `gorm:"uniqueIndex:idx_like_post_actor;not null"`
	RemoteUser   *RemoteUser  `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	// ActivityURI is the id of the Like activity, matched by Undo.
	ActivityURI string `gorm:"size:255;index"`
}

type Likes struct {
	db *gorm.DB
}

func NewLikes(db *gorm.DB) *Likes {
	return &Likes{db: db}
}

// Create records a like; a repeat from the same actor is a no-op.
func (l *Likes) Create(post *Post, actor *RemoteUser, activityURI string) error {
	like := Like{
		ID:           snowflake.Now(),
		PostID:       post.ID,
		RemoteUserID: actor.ID,
		ActivityURI:  activityURI,
	}
	return l.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error
}

// Undo removes the actor's like of the post, if one exists.
func (l *Likes) Undo(postID, remoteUserID snowflake.ID) error {
	return l.db.Where("post_id = ? AND remote_user_id = ?", postID, remoteUserID).Delete(&Like{}).Error
}

// UndoByActivityURI removes the actor's like by the original Like
// activity's id, for Undo payloads that reference rather than embed it.
func (l *Likes) UndoByActivityURI(remoteUserID snowflake.ID, activityURI string) error {
	return l.db.Where("remote_user_id = ? AND activity_uri = ?", remoteUserID, activityURI).Delete(&Like{}).Error
}

// CountForPost returns the number of likes on a post.
func (l *Likes) CountForPost(postID snowflake.ID) (int64, error) {
	var count int64
	return count, l.db.Model(&Like{}).Where("post_id = ?", postID).Count(&count).Error
}
