package wellknown

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/glade-social/glade/activitypub"
	"github.com/glade-social/glade/internal/httpx"
	"github.com/glade-social/glade/internal/to"
	"github.com/glade-social/glade/models"
	"github.com/go-chi/chi/v5"
)

func NodeInfoIndex(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("cache-control", "max-age=259200, public")
	return to.JSON(w, map[string]any{
		"links": []any{
			map[string]any{
				"rel":  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				"href": fmt.Sprintf("https://%s/nodeinfo/2.0", env.Config.Domain),
			},
		},
	})
}

func NodeInfoShow(env *activitypub.Env, w http.ResponseWriter, r *http.Request) error {
	if chi.URLParam(r, "version") != "2.0" {
		return httpx.Error(http.StatusNotFound, errors.New("unsupported version: "+chi.URLParam(r, "version")))
	}

	var users int64
	if err := env.DB.Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	var posts int64
	if err := env.DB.Model(&models.Post{}).Where("author_id is not null").Count(&posts).Error; err != nil {
		return err
	}

	// https://github.com/jhass/nodeinfo/blob/main/schemas/2.0/schema.json
	w.Header().Set("cache-control", "max-age=259200, public")
	return to.JSON(w, map[string]any{
		"version": "2.0",
		"software": map[string]any{
			"name":    "glade",
			"version": "0.0.0-devel",
		},
		"protocols": []any{"activitypub"},
		"services": map[string]any{
			"inbound":  []any{},
			"outbound": []any{},
		},
		"usage": map[string]any{
			"users": map[string]any{
				"total": users,
			},
			"localPosts": posts,
		},
		"openRegistrations": false,
		"metadata": map[string]any{
			"nodeName":        env.Config.Domain,
			"nodeDescription": "a glade instance",
			"privacyFocused":  true,
			"locationAware":   true,
			"federation": map[string]any{
				"enabled": env.Config.FederationEnabled,
			},
		},
	})
}
