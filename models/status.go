package models

// Status is the lifecycle phase of a room.
type Status string

const (
	StatusArranging Status = "ARRANGING"
	StatusCountdown Status = "COUNTDOWN"
	StatusPlaying   Status = "PLAYING"
	StatusCancelled Status = "CANCELLED"
	StatusFinished  Status = "FINISHED"
)

// ActiveStatuses are the phases the ticker drives.
var ActiveStatuses = []Status{StatusCountdown, StatusPlaying}

func (s Status) Valid() bool {
	switch s {
	case StatusArranging, StatusCountdown, StatusPlaying, StatusCancelled, StatusFinished:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusFinished
}
