package models

import (
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"gorm.io/gorm"
)

// An Activity is an audit record of one delivery attempt, inbound or
// outbound. Every request that reaches an inbox gets a row, as does
// every attempt to POST to a peer, whether or not it succeeds;
// (origin_host, activity_id) is indexed but deliberately not unique,
// since attempts repeat and each one is recorded.
type Activity struct {
	ID         snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt  time.Time
	ActivityID string `gorm:"size:255;index:idx_activity_origin,priority:2"`
	OriginHost string `gorm:"size:255;index:idx_activity_origin,priority:1"`
	Direction  string `gorm:"size:8;not null"`
	Type       string `gorm:"size:32"`
	ActorURI   string `gorm:"size:255;index"`
	ObjectURI  string `gorm:"size:255"`
	// Target is the destination inbox, set only on outbound rows.
	Target    string `gorm:"size:255"`
	Processed bool
	Outcome   string `gorm:"size:32"`
	Reason    string `gorm:"size:255"`
	Payload   []byte `gorm:"type:text"`
}

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

type Activities struct {
	db *gorm.DB
}

func NewActivities(db *gorm.DB) *Activities {
	return &Activities{db: db}
}

// Record writes the audit row for a delivery attempt.
func (a *Activities) Record(activity *Activity) error {
	activity.ID = snowflake.Now()
	return a.db.Create(activity).Error
}

// Update saves the outcome fields after processing.
func (a *Activities) Update(activity *Activity) error {
	return a.db.Model(activity).Select("processed", "outcome", "reason").Updates(activity).Error
}

// Seen reports whether an earlier attempt from the same origin carried
// the same activity id and was processed.
func (a *Activities) Seen(originHost, activityID string) (bool, error) {
	if activityID == "" {
		return false, nil
	}
	var count int64
	err := a.db.Model(&Activity{}).
		Where("origin_host = ? AND activity_id = ? AND direction = ? AND processed = ?",
			originHost, activityID, DirectionInbound, true).
		Count(&count).Error
	return count > 0, err
}

// Recent returns the newest audit rows, for the federation status API.
// Empty filter fields match everything.
func (a *Activities) Recent(limit int, direction, activityType string) ([]*Activity, error) {
	q := a.db.Order("id desc").Limit(limit)
	if direction != "" {
		q = q.Where("direction = ?", direction)
	}
	if activityType != "" {
		q = q.Where("type = ?", activityType)
	}
	var activities []*Activity
	err := q.Find(&activities).Error
	return activities, err
}
