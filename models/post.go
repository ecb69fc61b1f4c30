package models

import (
	"fmt"
	"net/url"
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// A Post is a message published on this instance, or a federated copy of
// a remote message materialized from an inbound Create. Exactly one of
// Author and RemoteAuthor is set.
type Post struct {
	ID             snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	UpdatedAt      time.Time
	AuthorID       *snowflake.ID `gorm:"index"`
	Author         *User         `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	RemoteAuthorID *snowflake.ID `gorm:"index"`
	RemoteAuthor   *RemoteUser   `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	Content        string        `gorm:"type:text"`
	ContentWarning string        `gorm:"size:128"`
	Visibility     Visibility    `gorm:"not null"`
	LocalOnly      bool          `gorm:"default:false;not null"`
	InReplyToID    *snowflake.ID
	InReplyTo      *Post `gorm:"constraint:OnDelete:SET NULL;<-:create;"`

	// URI is the canonical object URI of this post: minted locally for
	// local posts, the remote Note id for federated copies.
	URI string `gorm:"size:255;uniqueIndex;not null"`
	// FederatedID is set only on federated copies; it is the remote
	// object id and the idempotency key for inbound Create activities.
	FederatedID *string `gorm:"size:255;uniqueIndex"`
}

// IsLocal reports whether the post originated on this instance.
func (p *Post) IsLocal() bool {
	return p.FederatedID == nil
}

type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityLocal     Visibility = "local"
	VisibilityFollowers Visibility = "followers"
	VisibilityPrivate   Visibility = "private"
)

func (Visibility) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('public', 'local', 'followers', 'private')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

type Posts struct {
	db *gorm.DB
}

func NewPosts(db *gorm.DB) *Posts {
	return &Posts{db: db}
}

// Create creates a local post with a freshly minted URI under the
// author's domain.
func (p *Posts) Create(author *User, content string, visibility Visibility) (*Post, error) {
	u, err := url.Parse(author.ActorURI)
	if err != nil {
		return nil, err
	}
	id := snowflake.Now()
	post := &Post{
		ID:         id,
		AuthorID:   &author.ID,
		Author:     author,
		Content:    content,
		Visibility: visibility,
		URI:        fmt.Sprintf("https://%s/posts/%d", u.Host, id),
	}
	return post, p.db.Create(post).Error
}

// Find finds a post by its primary key.
func (p *Posts) Find(id snowflake.ID) (*Post, error) {
	var post Post
	return &post, p.db.Preload("Author").Preload("RemoteAuthor").Take(&post, "id = ?", id).Error
}

// FindByURI finds a post by its canonical object URI.
func (p *Posts) FindByURI(uri string) (*Post, error) {
	var post Post
	return &post, p.db.Preload("Author").Preload("RemoteAuthor").Take(&post, "uri = ?", uri).Error
}

// FindByFederatedID finds a federated copy by its remote object id.
func (p *Posts) FindByFederatedID(id string) (*Post, error) {
	var post Post
	return &post, p.db.Preload("RemoteAuthor").Take(&post, "federated_id = ?", id).Error
}

// DeleteByFederatedID removes a federated copy. It reports whether a row
// was actually removed; not-found is not an error, Deletes routinely
// arrive for objects this instance never saw.
func (p *Posts) DeleteByFederatedID(id string) (bool, error) {
	res := p.db.Where("federated_id = ?", id).Delete(&Post{})
	return res.RowsAffected > 0, res.Error
}

// RecentPublicByAuthor returns the author's newest public posts, newest
// first, for the outbox collection.
func (p *Posts) RecentPublicByAuthor(authorID snowflake.ID, limit int) ([]*Post, error) {
	var posts []*Post
	err := p.db.Preload("Author").
		Where("author_id = ? AND visibility = ? AND local_only = ?", authorID, VisibilityPublic, false).
		Order("id desc").Limit(limit).Find(&posts).Error
	return posts, err
}
