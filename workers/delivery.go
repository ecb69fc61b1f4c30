// Package workers contains the background loops started alongside the
// HTTP server: outbound delivery and remote actor refresh.
package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/glade-social/glade/activitypub"
	"github.com/glade-social/glade/models"
	"github.com/go-json-experiment/json"
	"gorm.io/gorm"
)

// NewDeliveryProcessor drains the delivery queue: each due request is
// signed as its local user and posted to its inbox. Failures back off
// exponentially until the attempt budget is spent, then the request is
// marked permanently failed and kept for inspection.
func NewDeliveryProcessor(db *gorm.DB, config models.Config) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		fmt.Println("DeliveryProcessor started")
		defer fmt.Println("DeliveryProcessor stopped")

		db := db.WithContext(ctx)
		for {
			if err := DeliverDue(ctx, db, config); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
				// continue
			}
		}
	}
}

// DeliverDue makes one pass over the due deliveries. Every attempt gets
// an outbound audit row recording its target and outcome.
func DeliverDue(ctx context.Context, db *gorm.DB, config models.Config) error {
	deliveries := models.NewDeliveries(db)
	audits := models.NewActivities(db)
	due, err := deliveries.Due(100)
	if err != nil {
		return err
	}
	for _, req := range due {
		audit := outboundAudit(config.Domain, req)
		if err := audits.Record(audit); err != nil {
			return err
		}
		if err := deliverOne(ctx, config, req); err != nil {
			log.Printf("deliver %s to %s: attempt %d: %v", req.ActivityID, req.InboxURL, req.Attempts+1, err)
			audit.Reason = err.Error()
			if req.Attempts+1 >= config.MaxDeliveryAttempts {
				audit.Outcome = "failed"
				if err := deliveries.Fail(req, err); err != nil {
					return err
				}
			} else {
				audit.Outcome = "retry"
				if err := deliveries.Retry(req, err, time.Now().Add(backoff(req.Attempts))); err != nil {
					return err
				}
			}
			if err := audits.Update(audit); err != nil {
				return err
			}
			continue
		}
		audit.Processed = true
		audit.Outcome = "delivered"
		if err := audits.Update(audit); err != nil {
			return err
		}
		if err := deliveries.Complete(req); err != nil {
			return err
		}
	}
	return nil
}

func outboundAudit(domain string, req *models.DeliveryRequest) *models.Activity {
	var doc struct {
		Type  string `json:"type"`
		Actor string `json:"actor"`
	}
	json.Unmarshal(req.Activity, &doc) // best effort, the body was ours
	return &models.Activity{
		ActivityID: req.ActivityID,
		OriginHost: domain,
		Direction:  models.DirectionOutbound,
		Type:       doc.Type,
		ActorURI:   doc.Actor,
		Target:     req.InboxURL,
		Payload:    req.Activity,
	}
}

func deliverOne(ctx context.Context, config models.Config, req *models.DeliveryRequest) error {
	client, err := activitypub.NewClient(req.User)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()
	return client.Post(ctx, req.InboxURL, req.Activity)
}

// backoff returns the wait before the next try: 1m, 2m, 4m, ... capped
// at four hours.
func backoff(attempts int) time.Duration {
	if attempts > 8 {
		return 4 * time.Hour
	}
	if d := time.Minute << attempts; d < 4*time.Hour {
		return d
	}
	return 4 * time.Hour
}
