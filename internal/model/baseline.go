package model

import "time"

// Baseline is one reference capture recorded while a room was confirmed empty.
// The table is append-only; downstream diffing reads the latest row per camera.
type Baseline struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	CameraName string    `gorm:"size:128;index;not null"`
	CapturedAt time.Time `gorm:"index;not null"`
	Location   string    `gorm:"size:512;not null"`
}
