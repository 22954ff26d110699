package model

import "time"

// completed / current / pending
type TrackingStatusTag string

const (
	TrackingTagCompleted TrackingStatusTag = "COMPLETED"
	TrackingTagCurrent   TrackingStatusTag = "CURRENT"
	TrackingTagPending   TrackingStatusTag = "PENDING"
)

// 1注文につきCURRENTは最大1件。追記のみで更新・削除はしない。
type TrackingEvent struct {
	ID         int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64             `gorm:"not null;index" json:"order_id"`
	Step       string            `gorm:"type:varchar(100);not null" json:"step"`
	StatusTag  TrackingStatusTag `gorm:"type:varchar(20);not null" json:"status_tag"`
	Location   string            `gorm:"type:varchar(255)" json:"location"`
	Note       string            `gorm:"type:text" json:"note"`
	Icon       string            `gorm:"type:varchar(50)" json:"icon"`
	OccurredAt time.Time         `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time         `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 現在のステップを返す。
// CURRENTタグがあればそれ。なければ最後に追記されたCOMPLETED。どちらも無ければnil。
func CurrentTrackingStep(events []TrackingEvent) *TrackingEvent {
	for i := range events {
		if events[i].StatusTag == TrackingTagCurrent {
			return &events[i]
		}
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].StatusTag == TrackingTagCompleted {
			return &events[i]
		}
	}
	return nil
}
