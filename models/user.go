package models

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// A User is a local account. The federation core reads its identity and
// key material; everything else about local users is owned elsewhere.
type User struct {
	ID                snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Username          string `gorm:"size:64;uniqueIndex;not null"`
	DisplayName       string `gorm:"size:128"`
	Bio               string `gorm:"type:text"`
	AvatarURL         string `gorm:"size:255"`
	Email             string `gorm:"size:128;uniqueIndex"`
	EncryptedPassword []byte `gorm:"size:60"`
	PublicKey         []byte `gorm:"not null"`
	PrivateKey        []byte `gorm:"not null"`
	ActorURI          string `gorm:"size:255;uniqueIndex;not null"`
	FederationEnabled bool   `gorm:"default:true;not null"`

	// glade location extension fields, carried verbatim into the actor
	// document; no location math happens here.
	LocationName          string `gorm:"size:128"`
	LocationPrivacyRadius int
	ApproximateLocation   bool
}

// KeyID returns the key identifier peers use to reference this user's
// public key.
func (u *User) KeyID() string {
	return u.ActorURI + "#main-key"
}

// InboxURL returns the user's personal inbox.
func (u *User) InboxURL() string {
	return u.ActorURI + "/inbox"
}

// OutboxURL returns the user's outbox collection.
func (u *User) OutboxURL() string {
	return u.ActorURI + "/outbox"
}

// FollowersURL returns the user's followers collection.
func (u *User) FollowersURL() string {
	return u.ActorURI + "/followers"
}

// FollowingURL returns the user's following collection.
func (u *User) FollowingURL() string {
	return u.ActorURI + "/following"
}

// CheckPassword compares password against the stored bcrypt hash.
func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword(u.EncryptedPassword, []byte(password))
}

// Users is the local directory: it resolves usernames and actor URIs to
// local accounts.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Create creates a local account with a fresh RSA keypair.
func (u *Users) Create(domain, username, email, password string, keypair Keypair) (*User, error) {
	passwd, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:                snowflake.Now(),
		Username:          username,
		DisplayName:       username,
		Email:             email,
		EncryptedPassword: passwd,
		PublicKey:         keypair.PublicKey,
		PrivateKey:        keypair.PrivateKey,
		ActorURI:          fmt.Sprintf("https://%s/users/%s", domain, username),
	}
	return user, u.db.Create(user).Error
}

// Keypair is a PEM encoded RSA keypair. It mirrors internal/crypto's type
// so callers don't need both imports.
type Keypair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// Find finds a local account by username.
func (u *Users) Find(username string) (*User, error) {
	var user User
	return &user, u.db.Where("username = ?", username).Take(&user).Error
}

// FindByURI resolves an actor or object URI to the local account it
// addresses. This is the one place the "username is the trailing path
// segment" convention lives: the candidate username is taken from the
// URI's last segment, and the looked-up account's canonical ActorURI must
// match the given URI exactly, so a foreign URI that happens to end in a
// local username does not resolve.
func (u *Users) FindByURI(uri string) (*User, error) {
	uri = strings.TrimSuffix(uri, "/")
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	username := path.Base(parsed.Path)
	user, err := u.Find(username)
	if err != nil {
		return nil, err
	}
	if user.ActorURI != uri {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}
