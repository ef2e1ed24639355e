package weather

// Phase is the lifecycle stage of the current request.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

// RequestState is the outcome of the current query. Success carries a
// snapshot and no message; Failed carries a message and no snapshot.
type RequestState struct {
	Phase    Phase            `json:"phase"`
	Snapshot *WeatherSnapshot `json:"snapshot,omitempty"`
	Message  string           `json:"message,omitempty"`
}

func Idle() RequestState {
	return RequestState{Phase: PhaseIdle}
}

func Loading() RequestState {
	return RequestState{Phase: PhaseLoading}
}

func Succeeded(s WeatherSnapshot) RequestState {
	return RequestState{Phase: PhaseSuccess, Snapshot: &s}
}

func Failed(message string) RequestState {
	return RequestState{Phase: PhaseFailed, Message: message}
}

// Settled reports whether the state is a final outcome (success or failure).
func (s RequestState) Settled() bool {
	return s.Phase == PhaseSuccess || s.Phase == PhaseFailed
}
