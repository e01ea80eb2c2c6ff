package domain

// AlertState is the state of the stall watcher.
type AlertState int

const (
	AlertStateOperating AlertState = iota
	AlertStateAlerting
)

func (s AlertState) String() string {
	switch s {
	case AlertStateOperating:
		return "operating"
	case AlertStateAlerting:
		return "alerting"
	default:
		return "unknown"
	}
}
