package activitypub

import (
	"testing"

	"github.com/glade-social/glade/internal/snowflake"
	"github.com/glade-social/glade/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func addFollower(t *testing.T, tx *gorm.DB, user *models.User, follower *models.RemoteUser) {
	t.Helper()
	require.NoError(t, models.NewRemoteFollowers(tx).Create(user, follower, follower.ActorURI+"/f"))
}

func TestFederatorPost(t *testing.T) {
	db := setupTestDB(t)

	t.Run("public post fans out to follower inboxes", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		bob := mockRemoteUser(t, tx, "bob", "peer.example")
		carol := mockRemoteUser(t, tx, "carol", "other.example")
		addFollower(t, tx, alice, bob)
		addFollower(t, tx, alice, carol)

		env := testEnv(tx, &fakeFetcher{})
		post := mockPost(t, tx, alice, "hello world")
		require.NoError(NewFederator(env).Post(alice, post))

		due, err := models.NewDeliveries(tx).Due(10)
		require.NoError(err)
		require.Len(due, 2)

		act, err := ParseActivity(due[0].Activity)
		require.NoError(err)
		create, ok := act.(*Create)
		require.True(ok)
		require.Equal(post.URI, create.Note.ID)
	})

	t.Run("shared inboxes collapse the target set", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		bob := mockRemoteUser(t, tx, "bob", "peer.example")
		carol := mockRemoteUser(t, tx, "carol", "peer.example")
		for _, follower := range []*models.RemoteUser{bob, carol} {
			require.NoError(tx.Model(follower).Update("shared_inbox_url", "https://peer.example/inbox").Error)
			follower.SharedInboxURL = "https://peer.example/inbox"
			addFollower(t, tx, alice, follower)
		}

		env := testEnv(tx, &fakeFetcher{})
		post := mockPost(t, tx, alice, "hello world")
		require.NoError(NewFederator(env).Post(alice, post))

		due, err := models.NewDeliveries(tx).Due(10)
		require.NoError(err)
		require.Len(due, 1)
		require.Equal("https://peer.example/inbox", due[0].InboxURL)
	})

	t.Run("reply also targets the original author", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		bob := mockRemoteUser(t, tx, "bob", "peer.example")

		remoteID := "https://peer.example/notes/1"
		parent := &models.Post{
			ID:             snowflake.Now(),
			RemoteAuthorID: &bob.ID,
			Content:        "original",
			Visibility:     models.VisibilityPublic,
			URI:            remoteID,
			FederatedID:    &remoteID,
		}
		require.NoError(tx.Create(parent).Error)

		reply := mockPost(t, tx, alice, "nice one")
		require.NoError(tx.Model(reply).Update("in_reply_to_id", parent.ID).Error)
		reply.InReplyToID = &parent.ID

		env := testEnv(tx, &fakeFetcher{})
		require.NoError(NewFederator(env).Post(alice, reply))

		due, err := models.NewDeliveries(tx).Due(10)
		require.NoError(err)
		require.Len(due, 1)
		require.Equal(bob.InboxURL, due[0].InboxURL)
	})

	t.Run("local-only and private posts never leave", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		bob := mockRemoteUser(t, tx, "bob", "peer.example")
		addFollower(t, tx, alice, bob)
		env := testEnv(tx, &fakeFetcher{})
		federator := NewFederator(env)

		post := mockPost(t, tx, alice, "just for us")
		post.LocalOnly = true
		require.NoError(federator.Post(alice, post))

		private, err := models.NewPosts(tx).Create(alice, "dear diary", models.VisibilityPrivate)
		require.NoError(err)
		require.NoError(federator.Post(alice, private))

		due, err := models.NewDeliveries(tx).Due(10)
		require.NoError(err)
		require.Empty(due)
	})

	t.Run("federation disabled drops delivery", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		bob := mockRemoteUser(t, tx, "bob", "peer.example")
		addFollower(t, tx, alice, bob)

		env := testEnv(tx, &fakeFetcher{})
		env.Config.FederationEnabled = false
		post := mockPost(t, tx, alice, "hello world")
		require.NoError(NewFederator(env).Post(alice, post))

		due, err := models.NewDeliveries(tx).Due(10)
		require.NoError(err)
		require.Empty(due)
	})
}

func TestFederatorFollow(t *testing.T) {
	db := setupTestDB(t)

	t.Run("follow queues and records pending state", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		bob := mockRemoteUser(t, tx, "bob", "peer.example")

		env := testEnv(tx, &fakeFetcher{})
		require.NoError(NewFederator(env).Follow(alice, bob))

		follows, err := models.NewRemoteFollows(tx).AcceptedForUser(alice.ID)
		require.NoError(err)
		require.Empty(follows) // still pending

		due, err := models.NewDeliveries(tx).Due(10)
		require.NoError(err)
		require.Len(due, 1)
		require.Equal(bob.InboxURL, due[0].InboxURL)

		act, err := ParseActivity(due[0].Activity)
		require.NoError(err)
		follow, ok := act.(*Follow)
		require.True(ok)
		require.Equal(bob.ActorURI, follow.Object)
		require.Equal(alice.ActorURI, follow.Actor)

		// the recorded pending follow carries the sent activity id
		recorded, err := models.NewRemoteFollows(tx).FindByActivityURI(follow.ID)
		require.NoError(err)
		require.True(recorded.Pending())
	})

	t.Run("follow refused when federation disabled", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		bob := mockRemoteUser(t, tx, "bob", "peer.example")

		env := testEnv(tx, &fakeFetcher{})
		env.Config.FederationEnabled = false
		require.Error(NewFederator(env).Follow(alice, bob))
	})
}
