package queue

import (
	"fmt"
	"time"

	"github.com/maheshrc27/packflow/internal/service"
)

type Queue struct {
	publisher service.PublisherService
}

func NewQueue(publisher service.PublisherService) *Queue {
	return &Queue{publisher: publisher}
}

const (
	TaskTypePublishPack = "publish:pack"
	DefaultQueue        = "default"
)

type PublishPackPayload struct {
	PackName   string    `json:"pack_name"`
	OwnerID    int64     `json:"owner_id"`
	TargetChat int64     `json:"target_chat"`
	FireAt     time.Time `json:"fire_at"`
}

// JobID identifies the publication of a pack at a given time. Scheduling the
// same pack for the same minute twice yields the same id.
func JobID(packName string, fireAt time.Time) string {
	return fmt.Sprintf("pack:%s:%d", packName, fireAt.Unix())
}
