// Package wellknown serves the discovery endpoints peers use to find
// this instance's actors: WebFinger, NodeInfo, and host-meta.
package wellknown

import (
	"fmt"
	"net/http"

	"github.com/glade-social/glade/activitypub"
	"github.com/glade-social/glade/internal/httpx"
	"github.com/glade-social/glade/internal/webfinger"
	"github.com/glade-social/glade/models"
	"github.com/go-json-experiment/json"
)

// WebfingerShow resolves ?resource=acct:user@domain to a JRD document.
// Only handles on this instance's own domain resolve.
func WebfingerShow(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	acct, err := webfinger.Parse(r.URL.Query().Get("resource"))
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err)
	}
	if acct.Host != env.Config.Domain {
		return httpx.Error(http.StatusNotFound, fmt.Errorf("unknown domain %q", acct.Host))
	}
	user, err := models.NewUsers(env.DB).Find(acct.User)
	if err != nil {
		return httpx.Error(http.StatusNotFound, err)
	}

	w.Header().Set("Content-Type", "application/jrd+json")
	return json.MarshalFull(w, map[string]any{
		"subject": acct.String(),
		"aliases": []string{
			fmt.Sprintf("https://%s/@%s", env.Config.Domain, user.Username),
			user.ActorURI,
		},
		"links": []map[string]any{
			{
				"rel":  "http://webfinger.net/rel/profile-page",
				"type": "text/html",
				"href": fmt.Sprintf("https://%s/@%s", env.Config.Domain, user.Username),
			},
			{
				"rel":  "self",
				"type": "application/activity+json",
				"href": user.ActorURI,
			},
		},
	})
}
