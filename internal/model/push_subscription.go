package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey;size:512"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// SubscriptionRoom maps a push subscription to a room the subscriber wants
// analysis reports for. Rooms are configured, not persisted, so the room side
// is a plain string ID.
type SubscriptionRoom struct {
	Endpoint string `gorm:"primaryKey;size:512"`
	RoomID   string `gorm:"primaryKey;size:64"`
}
