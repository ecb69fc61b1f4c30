package models

import (
	"fmt"
	"testing"

	"github.com/glade-social/glade/internal/crypto"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockUser creates a local account in the database.
func MockUser(t *testing.T, tx *gorm.DB, username, domain string) *User {
	t.Helper()
	require := require.New(t)

	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)

	user, err := NewUsers(tx).Create(domain, username, username+"@"+domain, "hunter2", Keypair{
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
	})
	require.NoError(err)
	return user
}

// MockRemoteUser creates a cached remote actor in the database.
func MockRemoteUser(t *testing.T, tx *gorm.DB, username, domain string) *RemoteUser {
	t.Helper()
	require := require.New(t)

	user, err := NewRemoteUsers(tx).Upsert(&RemoteUser{
		ActorURI: fmt.Sprintf("https://%s/users/%s", domain, username),
		Username: username,
		Domain:   domain,
		InboxURL: fmt.Sprintf("https://%s/users/%s/inbox", domain, username),
	})
	require.NoError(err)
	return user
}

// MockPost creates a local post in the database.
func MockPost(t *testing.T, tx *gorm.DB, author *User, content string) *Post {
	t.Helper()
	require := require.New(t)

	post, err := NewPosts(tx).Create(author, content, VisibilityPublic)
	require.NoError(err)
	return post
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger: logger.Default.LogMode(func() logger.LogLevel {
			return logger.Warn
		}()),
	})
	require.NoError(err)

	err = db.AutoMigrate(AllTables()...)
	require.NoError(err)

	// enable foreign key constraints
	err = db.Exec("PRAGMA foreign_keys = ON").Error
	require.NoError(err)

	return db
}
