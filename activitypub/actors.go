package activitypub

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/glade-social/glade/internal/httpx"
	"github.com/glade-social/glade/internal/snowflake"
	"github.com/glade-social/glade/internal/to"
	"github.com/glade-social/glade/models"
	"github.com/go-chi/chi/v5"
)

// wantsActivityJSON reports whether the client asked for the ActivityPub
// representation rather than HTML.
func wantsActivityJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/activity+json") ||
		strings.Contains(accept, "application/ld+json")
}

// ActorShow serves a local user's actor document, or an HTML stub
// pointing at it for browsers.
func ActorShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	user, err := models.NewUsers(env.DB).Find(chi.URLParam(r, "username"))
	if err != nil {
		return httpx.Error(http.StatusNotFound, err)
	}
	if !wantsActivityJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<title>%s</title>
<link rel="alternate" type="application/activity+json" href="%s">
</head>
<body><h1>%s</h1><p>%s</p></body>
</html>
`, user.Username, user.ActorURI, user.DisplayName, user.Bio)
		return nil
	}
	return to.ActivityJSON(w, ActorDoc(user))
}

// PostShow serves a local post as a Note document. Posts that were never
// public are not served to anyone.
func PostShow(env *Env, w http.ResponseWriter, r *http.Request) error {
	id, err := snowflake.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return httpx.Error(http.StatusNotFound, err)
	}
	post, err := models.NewPosts(env.DB).Find(id)
	if err != nil {
		return httpx.Error(http.StatusNotFound, err)
	}
	if post.Author == nil {
		// federated copies are not re-served under our domain
		return httpx.Error(http.StatusNotFound, fmt.Errorf("no such post"))
	}
	switch post.Visibility {
	case models.VisibilityPublic:
	default:
		return httpx.Error(http.StatusForbidden, fmt.Errorf("not a public post"))
	}
	return to.ActivityJSON(w, NoteDoc(post.Author, post))
}
