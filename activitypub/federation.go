package activitypub

import (
	"net/http"

	"github.com/glade-social/glade/internal/algorithms"
	"github.com/glade-social/glade/internal/httpx"
	"github.com/glade-social/glade/internal/to"
	"github.com/glade-social/glade/models"
	"github.com/gorilla/schema"
)

var decoder = schema.NewDecoder()

// FederationStatus reports the health of federation: queue depth,
// permanently failed deliveries, and known peers.
func FederationStatus(env *Env, w http.ResponseWriter, r *http.Request) error {
	pending, failed, err := models.NewDeliveries(env.DB).Pending()
	if err != nil {
		return err
	}
	instances, err := models.NewRemoteInstances(env.DB).Count()
	if err != nil {
		return err
	}
	return to.JSON(w, map[string]any{
		"federation_enabled":  env.Config.FederationEnabled,
		"pending_deliveries":  pending,
		"failed_deliveries":   failed,
		"known_instances":     instances,
		"max_delivery_tries":  env.Config.MaxDeliveryAttempts,
	})
}

// FederationActivity lists recent audit rows, optionally filtered by
// direction and activity type.
func FederationActivity(env *Env, w http.ResponseWriter, r *http.Request) error {
	var params struct {
		Limit     int    `schema:"limit"`
		Direction string `schema:"direction"`
		Type      string `schema:"type"`
	}
	if err := decoder.Decode(&params, r.URL.Query()); err != nil {
		return httpx.Error(http.StatusBadRequest, err)
	}
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	rows, err := models.NewActivities(env.DB).Recent(params.Limit, params.Direction, params.Type)
	if err != nil {
		return err
	}
	return to.JSON(w, algorithms.Map(rows, func(a *models.Activity) map[string]any {
		return map[string]any{
			"id":          a.ActivityID,
			"origin_host": a.OriginHost,
			"direction":   a.Direction,
			"type":        a.Type,
			"actor":       a.ActorURI,
			"target":      a.Target,
			"received_at": a.CreatedAt,
			"processed":   a.Processed,
			"outcome":     a.Outcome,
			"reason":      a.Reason,
		}
	}))
}
