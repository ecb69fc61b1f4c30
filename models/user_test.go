package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	db := setupTestDB(t)

	t.Run("create and find", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := MockUser(t, tx, "alice", "glade.example")
		require.Equal("https://glade.example/users/alice", alice.ActorURI)
		require.Equal("https://glade.example/users/alice#main-key", alice.KeyID())
		require.NoError(alice.CheckPassword("hunter2"))
		require.Error(alice.CheckPassword("wrong"))

		found, err := NewUsers(tx).Find("alice")
		require.NoError(err)
		require.Equal(alice.ID, found.ID)
	})

	t.Run("find by URI requires exact match", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		alice := MockUser(t, tx, "alice", "glade.example")
		users := NewUsers(tx)

		found, err := users.FindByURI("https://glade.example/users/alice")
		require.NoError(err)
		require.Equal(alice.ID, found.ID)

		// trailing slash is tolerated
		found, err = users.FindByURI("https://glade.example/users/alice/")
		require.NoError(err)
		require.Equal(alice.ID, found.ID)

		// a foreign URI ending in a local username must not resolve
		_, err = users.FindByURI("https://evil.example/users/alice")
		require.Error(err)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		require := require.New(t)
		tx := db.Begin()
		defer tx.Rollback()

		MockUser(t, tx, "alice", "glade.example")
		_, err := NewUsers(tx).Create("glade.example", "alice", "other@glade.example", "pw", Keypair{
			PublicKey:  []byte("pub"),
			PrivateKey: []byte("priv"),
		})
		require.Error(err)
	})
}
