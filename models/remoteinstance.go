package models

import (
	"time"

	"github.com/glade-social/glade/internal/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// A RemoteInstance is a peer server this instance has exchanged
// activities with.
type RemoteInstance struct {
	ID        snowflake.ID `gorm:"primarykey;autoIncrement:false"`
	CreatedAt time.Time
	Domain    string `gorm:"size:255;uniqueIndex;not null"`
	// Software is self-reported by the peer and untrusted.
	Software   string     `gorm:"size:64"`
	TrustLevel TrustLevel `gorm:"default:'limited';not null"`
	// SharedInboxURL is the instance-wide inbox, when the peer's actors
	// advertise one.
	SharedInboxURL string `gorm:"size:255"`
	PublicKey      []byte
	LastSeenAt     time.Time
	UserCount      int `gorm:"default:0;not null"`
}

// Blocked reports whether activities from this instance are refused.
func (r *RemoteInstance) Blocked() bool {
	return r.TrustLevel == TrustBlocked
}

type TrustLevel string

const (
	TrustBlocked TrustLevel = "blocked"
	TrustLimited TrustLevel = "limited"
	TrustTrusted TrustLevel = "trusted"
)

func (TrustLevel) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return "enum('blocked', 'limited', 'trusted')"
	case "sqlite":
		return "TEXT"
	default:
		return ""
	}
}

type RemoteInstances struct {
	db *gorm.DB
}

func NewRemoteInstances(db *gorm.DB) *RemoteInstances {
	return &RemoteInstances{db: db}
}

// FindOrCreate returns the instance row for domain, creating it with a
// fresh LastSeenAt when absent.
func (r *RemoteInstances) FindOrCreate(domain string) (*RemoteInstance, error) {
	instance := RemoteInstance{
		ID:         snowflake.Now(),
		Domain:     domain,
		TrustLevel: TrustLimited,
		LastSeenAt: time.Now(),
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "domain"}},
		DoNothing: true,
	}).Create(&instance).Error
	if err != nil {
		return nil, err
	}
	// the insert may have been skipped; read back whichever row won
	// without the minted ID in the conditions
	var row RemoteInstance
	return &row, r.db.Take(&row, "domain = ?", domain).Error
}

// Find finds an instance by domain.
func (r *RemoteInstances) Find(domain string) (*RemoteInstance, error) {
	var instance RemoteInstance
	return &instance, r.db.Take(&instance, "domain = ?", domain).Error
}

// SetSoftware records the peer's self-reported software.
func (r *RemoteInstances) SetSoftware(instance *RemoteInstance, software string) error {
	return r.db.Model(instance).Update("software", software).Error
}

// Touch records that the instance was just heard from.
func (r *RemoteInstances) Touch(instance *RemoteInstance) error {
	return r.db.Model(instance).Update("last_seen_at", time.Now()).Error
}

// Count returns the number of known peers.
func (r *RemoteInstances) Count() (int64, error) {
	var count int64
	return count, r.db.Model(&RemoteInstance{}).Count(&count).Error
}
