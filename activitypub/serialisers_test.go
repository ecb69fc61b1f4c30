package activitypub

import (
	"testing"

	"github.com/glade-social/glade/models"
	"github.com/go-json-experiment/json"
	"github.com/stretchr/testify/require"
)

func TestActorDoc(t *testing.T) {
	db := setupTestDB(t)

	t.Run("fields", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		doc := ActorDoc(alice)
		require.Equal("https://glade.example/users/alice", doc["id"])
		require.Equal("Person", doc["type"])
		require.Equal("alice", doc["preferredUsername"])
		require.Equal("https://glade.example/users/alice/inbox", doc["inbox"])
		require.Equal("https://glade.example/inbox", mapFromAny(doc["endpoints"])["sharedInbox"])

		key := mapFromAny(doc["publicKey"])
		require.Equal("https://glade.example/users/alice#main-key", key["id"])
		require.Contains(key["publicKeyPem"], "BEGIN PUBLIC KEY")

		// no approximate location configured, no extension emitted
		_, ok := doc["glade:location"]
		require.False(ok)
	})

	t.Run("location extension", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		alice.LocationName = "Hoh Rainforest"
		alice.LocationPrivacyRadius = 5000
		alice.ApproximateLocation = true

		doc := ActorDoc(alice)
		loc := mapFromAny(doc["glade:location"])
		require.Equal("Hoh Rainforest", loc["name"])
		require.Equal(5000, loc["radius"])
	})
}

func TestNoteDoc(t *testing.T) {
	db := setupTestDB(t)

	t.Run("public note round-trips through the parser", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		post := mockPost(t, tx, alice, "morning walk in the glade")

		doc := NoteDoc(alice, post)
		require.Equal(post.URI, doc["id"])
		require.Equal([]string{PublicAudience}, doc["to"])
		require.Equal([]string{alice.FollowersURL()}, doc["cc"])

		body, err := json.Marshal(map[string]any{
			"type":   "Create",
			"actor":  alice.ActorURI,
			"object": doc,
		})
		require.NoError(err)
		act, err := ParseActivity(body)
		require.NoError(err)
		create, ok := act.(*Create)
		require.True(ok)
		require.NotNil(create.Note)
		require.Equal(post.URI, create.Note.ID)
		require.Equal("morning walk in the glade", create.Note.Content)
		require.Equal("public", create.Note.Visibility())
	})

	t.Run("followers note is not public", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := mockUser(t, tx, "alice", "glade.example")
		post, err := models.NewPosts(tx).Create(alice, "for followers", models.VisibilityFollowers)
		require.NoError(err)

		doc := NoteDoc(alice, post)
		require.Equal([]string{alice.FollowersURL()}, doc["to"])
		require.Equal([]string{}, doc["cc"])
	})
}
