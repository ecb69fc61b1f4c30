package activitypub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseActivity(t *testing.T) {
	t.Run("follow", func(t *testing.T) {
		require := require.New(t)
		act, err := ParseActivity([]byte(`{
			"id": "https://peer.example/activities/1",
			"type": "Follow",
			"actor": "https://peer.example/users/bob",
			"object": "https://glade.example/users/alice"
		}`))
		require.NoError(err)
		follow, ok := act.(*Follow)
		require.True(ok)
		require.Equal("https://glade.example/users/alice", follow.Object)
		require.Equal("peer.example", follow.OriginHost())
	})

	t.Run("create with note and location", func(t *testing.T) {
		require := require.New(t)
		act, err := ParseActivity([]byte(`{
			"type": "Create",
			"actor": "https://peer.example/users/bob",
			"object": {
				"id": "https://peer.example/notes/1",
				"type": "Note",
				"attributedTo": "https://peer.example/users/bob",
				"content": "hello",
				"published": "2023-04-01T10:00:00Z",
				"to": ["https://www.w3.org/ns/activitystreams#Public"],
				"cc": ["https://peer.example/users/bob/followers"],
				"glade:location": {"name": "Hoh Rainforest", "radius": 5000}
			}
		}`))
		require.NoError(err)
		create, ok := act.(*Create)
		require.True(ok)
		require.NotNil(create.Note)
		require.Equal("hello", create.Note.Content)
		require.Equal("public", create.Note.Visibility())
		require.NotNil(create.Note.Location)
		require.Equal("Hoh Rainforest", create.Note.Location.Name)
		require.EqualValues(5000, create.Note.Location.Radius)
	})

	t.Run("create with a non-note object", func(t *testing.T) {
		require := require.New(t)
		act, err := ParseActivity([]byte(`{
			"type": "Create",
			"actor": "https://peer.example/users/bob",
			"object": {"id": "https://peer.example/video/1", "type": "Video"}
		}`))
		require.NoError(err)
		create, ok := act.(*Create)
		require.True(ok)
		require.Nil(create.Note)
	})

	t.Run("undo with object by reference", func(t *testing.T) {
		require := require.New(t)
		act, err := ParseActivity([]byte(`{
			"type": "Undo",
			"actor": "https://peer.example/users/bob",
			"object": "https://peer.example/activities/like1"
		}`))
		require.NoError(err)
		undo, ok := act.(*Undo)
		require.True(ok)
		require.Equal("", undo.Object.Type)
		require.Equal("https://peer.example/activities/like1", undo.Object.ID)
	})

	t.Run("undo with inline object", func(t *testing.T) {
		require := require.New(t)
		act, err := ParseActivity([]byte(`{
			"type": "Undo",
			"actor": "https://peer.example/users/bob",
			"object": {
				"id": "https://peer.example/activities/f1",
				"type": "Follow",
				"actor": "https://peer.example/users/bob",
				"object": "https://glade.example/users/alice"
			}
		}`))
		require.NoError(err)
		undo, ok := act.(*Undo)
		require.True(ok)
		require.Equal("Follow", undo.Object.Type)
		require.Equal("https://glade.example/users/alice", undo.Object.Object)
	})

	t.Run("like with embedded object", func(t *testing.T) {
		require := require.New(t)
		act, err := ParseActivity([]byte(`{
			"type": "Like",
			"actor": "https://peer.example/users/bob",
			"object": {"id": "https://glade.example/posts/1"}
		}`))
		require.NoError(err)
		like, ok := act.(*Like)
		require.True(ok)
		require.Equal("https://glade.example/posts/1", like.Object)
	})

	t.Run("unrecognized type parses to unknown", func(t *testing.T) {
		require := require.New(t)
		act, err := ParseActivity([]byte(`{
			"type": "Move",
			"actor": "https://peer.example/users/bob",
			"object": "https://other.example/users/bob"
		}`))
		require.NoError(err)
		unknown, ok := act.(*Unknown)
		require.True(ok)
		require.Equal("Move", unknown.Type)
	})

	t.Run("missing actor is an error", func(t *testing.T) {
		require := require.New(t)
		_, err := ParseActivity([]byte(`{"type": "Follow", "object": "https://glade.example/users/alice"}`))
		require.Error(err)
	})

	t.Run("not json is an error", func(t *testing.T) {
		require := require.New(t)
		_, err := ParseActivity([]byte(`<xml/>`))
		require.Error(err)
	})
}

func TestNoteVisibility(t *testing.T) {
	tc := []struct {
		name   string
		note   Note
		expect string
	}{
		{
			name:   "public in to",
			note:   Note{To: []string{PublicAudience}},
			expect: "public",
		},
		{
			name:   "public in cc",
			note:   Note{CC: []string{PublicAudience}},
			expect: "public",
		},
		{
			name: "followers only",
			note: Note{
				AttributedTo: "https://peer.example/users/bob",
				To:           []string{"https://peer.example/users/bob/followers"},
			},
			expect: "followers",
		},
		{
			name: "direct message",
			note: Note{
				AttributedTo: "https://peer.example/users/bob",
				To:           []string{"https://glade.example/users/alice"},
			},
			expect: "private",
		},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expect, tt.note.Visibility())
		})
	}
}
