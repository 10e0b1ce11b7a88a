// Package events declares the domain events exchanged between the camp,
// scheduler, attendance and notification modules. The bus itself lives in
// platform/events.
package events

import (
	"summercamp_backend/platform/events"
	"summercamp_backend/platform/logger"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *InMemoryBus { return events.NewInMemoryBus(log) }

// CampStatusChanged is published after a lifecycle transition was persisted.
type CampStatusChanged struct {
	BaseEvent
	CampID int64  `json:"campId"`
	From   string `json:"from"`
	To     string `json:"to"`
	Source string `json:"source"`
}

func (e CampStatusChanged) EventName() string { return "camps.status_changed" }

// AttendanceProvisioned is published when the provisioning workflow finished for a camp.
type AttendanceProvisioned struct {
	BaseEvent
	CampID             int64 `json:"campId"`
	AlreadyProvisioned bool  `json:"alreadyProvisioned"`
	RecordsCreated     int   `json:"recordsCreated"`
	PhotosCopied       int   `json:"photosCopied"`
	PhotosFailed       int   `json:"photosFailed"`
}

func (e AttendanceProvisioned) EventName() string { return "attendance.provisioned" }

// AttendanceReconciled is published after recognition results were applied.
type AttendanceReconciled struct {
	BaseEvent
	ActivityScheduleID int64  `json:"activityScheduleId"`
	RequestID          string `json:"requestId"`
	Updated            int    `json:"updated"`
	Created            int    `json:"created"`
	Failed             int    `json:"failed"`
}

func (e AttendanceReconciled) EventName() string { return "attendance.reconciled" }
