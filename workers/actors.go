package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/glade-social/glade/activitypub"
	"github.com/glade-social/glade/models"
	"gorm.io/gorm"
)

// NewActorRefreshProcessor re-fetches cached remote actors that have not
// been refreshed for a day, so key rotations and profile edits propagate
// without waiting for the next signed request.
func NewActorRefreshProcessor(db *gorm.DB, config models.Config) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		fmt.Println("ActorRefreshProcessor started")
		defer fmt.Println("ActorRefreshProcessor stopped")

		db := db.WithContext(ctx)
		fetcher := activitypub.NewRemoteActorFetcher(db, config)
		for {
			stale, err := models.NewRemoteUsers(db).StalerThan(time.Now().Add(-24*time.Hour), 25)
			if err != nil {
				return err
			}
			for _, actor := range stale {
				if _, err := fetcher.Refresh(ctx, actor.ActorURI, nil); err != nil {
					// a dead peer shouldn't stall the loop; the row keeps
					// its old fetched_at and will be retried next pass
					log.Printf("refresh %s: %v", actor.ActorURI, err)
				}
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(15 * time.Minute):
				// continue
			}
		}
	}
}
