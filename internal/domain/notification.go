package domain

type NotificationMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type PlanCommittedNotificationData struct {
	FullName    string `json:"fullName"`
	PlanID      string `json:"planId"`
	ShiftCount  int    `json:"shiftCount"`
	RangeStart  string `json:"rangeStart"`
	RangeEnd    string `json:"rangeEnd"`
	CommittedBy string `json:"committedBy"`
}
