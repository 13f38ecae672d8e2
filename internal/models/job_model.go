package models

import "time"

type ScheduledJob struct {
	ID         string    `json:"id"`
	PackName   string    `json:"pack_name"`
	OwnerID    int64     `json:"owner_id"`
	TargetChat int64     `json:"target_chat"`
	FireAt     time.Time `json:"fire_at"`
}
