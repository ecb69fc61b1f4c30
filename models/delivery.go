package models

import (
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"gorm.io/gorm"
)

// A DeliveryRequest is one pending outbound delivery: a signed activity
// bound for a single remote inbox. The delivery worker polls this table.
type DeliveryRequest struct {
	ID        snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
	// UserID identifies the local account whose key signs the request.
	UserID snowflake.ID `gorm:"index;not null"`
	User   *User        `gorm:"constraint:OnDelete:CASCADE;<-:create;"`
	// InboxURL is the destination inbox.
	InboxURL string `gorm:"size:255;not null"`
	// Activity is the serialized activity document.
	Activity []byte `gorm:"type:text;not null"`
	// ActivityID is the id of the activity, for the status API.
	ActivityID string `gorm:"size:255;index"`
	Attempts   int    `gorm:"default:0;not null"`
	LastError  string `gorm:"size:255"`
	// NextAttemptAt schedules the next try; the worker skips rows whose
	// time has not come.
	NextAttemptAt time.Time `gorm:"index;not null"`
	// PermanentlyFailed marks a delivery abandoned after exhausting its
	// attempts. Failed rows are kept for the status API.
	PermanentlyFailed bool `gorm:"default:false;not null"`
}

type Deliveries struct {
	db *gorm.DB
}

func NewDeliveries(db *gorm.DB) *Deliveries {
	return &Deliveries{db: db}
}

// Enqueue schedules one delivery per inbox. Duplicate inbox URLs in the
// slice are collapsed so a shared inbox is hit once.
func (d *Deliveries) Enqueue(user *User, activityID string, activity []byte, inboxes []string) error {
	seen := map[string]bool{}
	now := time.Now()
	for _, inbox := range inboxes {
		if inbox == "" || seen[inbox] {
			continue
		}
		seen[inbox] = true
		req := DeliveryRequest{
			ID:            snowflake.Now(),
			UserID:        user.ID,
			InboxURL:      inbox,
			Activity:      activity,
			ActivityID:    activityID,
			NextAttemptAt: now,
		}
		if err := d.db.Create(&req).Error; err != nil {
			return err
		}
	}
	return nil
}

// Due returns deliveries whose next attempt time has passed, oldest
// first.
func (d *Deliveries) Due(limit int) ([]*DeliveryRequest, error) {
	var reqs []*DeliveryRequest
	err := d.db.Preload("User").
		Where("permanently_failed = ? AND next_attempt_at <= ?", false, time.Now()).
		Order("next_attempt_at asc").Limit(limit).Find(&reqs).Error
	return reqs, err
}

// Complete removes a delivered request.
func (d *Deliveries) Complete(req *DeliveryRequest) error {
	return d.db.Delete(req).Error
}

// Retry records a failed attempt and schedules the next one.
func (d *Deliveries) Retry(req *DeliveryRequest, cause error, next time.Time) error {
	return d.db.Model(req).Updates(map[string]any{
		"attempts":        req.Attempts + 1,
		"last_error":      cause.Error(),
		"next_attempt_at": next,
	}).Error
}

// Fail marks a delivery permanently failed after its final attempt.
func (d *Deliveries) Fail(req *DeliveryRequest, cause error) error {
	return d.db.Model(req).Updates(map[string]any{
		"attempts":           req.Attempts + 1,
		"last_error":         cause.Error(),
		"permanently_failed": true,
	}).Error
}

// Pending returns queue counts for the status API.
func (d *Deliveries) Pending() (pending, failed int64, err error) {
	if err = d.db.Model(&DeliveryRequest{}).Where("permanently_failed = ?", false).Count(&pending).Error; err != nil {
		return
	}
	err = d.db.Model(&DeliveryRequest{}).Where("permanently_failed = ?", true).Count(&failed).Error
	return
}
