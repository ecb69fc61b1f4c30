package models

import (
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// A RemotePost is a note backfilled from a remote actor's outbox, kept
// as a lightweight cache keyed by object URI. Notes that arrive as
// addressed Create activities become Post rows instead.
type RemotePost struct {
	ID           snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt    time.Time
	ObjectURI    string       `gorm:"size:255;uniqueIndex;not null"`
	RemoteUserID snowflake.ID `gorm:"index;not null"`
	RemoteUser   *RemoteUser  `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	Content      string       `gorm:"type:text"`
	// Summary carries the note's content warning, when it has one.
	Summary   string `gorm:"size:128"`
	InReplyTo string `gorm:"size:255"`
	Published time.Time
	FetchedAt time.Time
}

type RemotePosts struct {
	db *gorm.DB
}

func NewRemotePosts(db *gorm.DB) *RemotePosts {
	return &RemotePosts{db: db}
}

// Upsert stores a backfilled note, ignoring one already present under
// the same object URI.
func (r *RemotePosts) Upsert(post *RemotePost) error {
	if post.ID == 0 {
		post.ID = snowflake.Now()
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "object_uri"}},
		DoNothing: true,
	}).Create(post).Error
}

// Revise overwrites a cached note's content in place. It reports
// whether a row owned by the actor existed under the object URI.
func (r *RemotePosts) Revise(objectURI string, remoteUserID snowflake.ID, content, summary string) (bool, error) {
	res := r.db.Model(&RemotePost{}).
		Where("object_uri = ? AND remote_user_id = ?", objectURI, remoteUserID).
		Updates(map[string]any{"content": content, "summary": summary})
	return res.RowsAffected > 0, res.Error
}

// DeleteByObjectURI removes a cached note, reporting whether one was
// present.
func (r *RemotePosts) DeleteByObjectURI(objectURI string) (bool, error) {
	res := r.db.Where("object_uri = ?", objectURI).Delete(&RemotePost{})
	return res.RowsAffected > 0, res.Error
}

// ForRemoteUser returns the actor's backfilled notes, newest first.
func (r *RemotePosts) ForRemoteUser(remoteUserID snowflake.ID, limit int) ([]*RemotePost, error) {
	var posts []*RemotePost
	err := r.db.Where("remote_user_id = ?", remoteUserID).Order("published desc").Limit(limit).Find(&posts).Error
	return posts, err
}
