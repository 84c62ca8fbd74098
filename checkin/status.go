package checkin

// Status is the result of the check-in phase
type Status int

const (
	// StatusFailed is the starting value and the fallback for anything unclear
	StatusFailed Status = iota
	StatusAlreadyDone
	StatusJustCompleted
)

// Label is the text shown in the report
func (s Status) Label() string {
	switch s {
	case StatusAlreadyDone:
		return "已签到"
	case StatusJustCompleted:
		return "签到成功"
	default:
		return "签到失败"
	}
}

func (s Status) String() string {
	switch s {
	case StatusAlreadyDone:
		return "already_done"
	case StatusJustCompleted:
		return "just_completed"
	default:
		return "failed"
	}
}

// Succeeded reports whether the account is checked in for today
func (s Status) Succeeded() bool {
	return s != StatusFailed
}
