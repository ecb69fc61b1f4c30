package activitypub

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glade-social/glade/internal/crypto"
	"github.com/glade-social/glade/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

	err = db.AutoMigrate(models.AllTables()...)
	require.NoError(err)

	// enable foreign key constraints
	err = db.Exec("PRAGMA foreign_keys = ON").Error
	require.NoError(err)

	return db
}

func mockUser(t *testing.T, tx *gorm.DB, username, domain string) *models.User {
	t.Helper()
	require := require.New(t)

	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)

	user, err := models.NewUsers(tx).Create(domain, username, username+"@"+domain, "hunter2", models.Keypair{
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
	})
	require.NoError(err)
	return user
}

func mockRemoteUser(t *testing.T, tx *gorm.DB, username, domain string) *models.RemoteUser {
	t.Helper()
	require := require.New(t)

	kp, err := crypto.GenerateRSAKeypair()
	require.NoError(err)

	user, err := models.NewRemoteUsers(tx).Upsert(&models.RemoteUser{
		ActorURI:  fmt.Sprintf("https://%s/users/%s", domain, username),
		Username:  username,
		Domain:    domain,
		InboxURL:  fmt.Sprintf("https://%s/users/%s/inbox", domain, username),
		PublicKey: kp.PublicKey,
	})
	require.NoError(err)
	return user
}

func mockPost(t *testing.T, tx *gorm.DB, author *models.User, content string) *models.Post {
	t.Helper()
	require := require.New(t)

	posts := models.NewPosts(tx)
	post, err := posts.Create(author, content, models.VisibilityPublic)
	require.NoError(err)
	found, err := posts.Find(post.ID)
	require.NoError(err)
	return found
}

// fakeFetcher serves actors from a fixed map and counts backfills. The
// counter is locked because backfills run off the request goroutine.
type fakeFetcher struct {
	actors map[string]*models.RemoteUser

	mu         sync.Mutex
	fetchPosts int
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string, signAs *models.User) (*models.RemoteUser, error) {
	if actor, ok := f.actors[uri]; ok {
		return actor, nil
	}
	return nil, fmt.Errorf("no such actor %s", uri)
}

func (f *fakeFetcher) FetchPosts(ctx context.Context, actor *models.RemoteUser, signAs *models.User) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchPosts++
	return 3, nil
}

func (f *fakeFetcher) backfills() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchPosts
}

func testEnv(db *gorm.DB, fetcher ActorFetcher) *Env {
	return &Env{
		Env: &models.Env{
			DB:     db,
			Config: models.DefaultConfig("glade.example"),
		},
		Fetcher: fetcher,
		Queue:   models.NewDeliveries(db),
	}
}
