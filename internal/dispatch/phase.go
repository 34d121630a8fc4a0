package dispatch

// Phase is where a worker is in its gather cycle:
//
//	Idle -> EnRouteToResource -> Gathering -> EnRouteToBase -> Depositing -> Idle
//
// ExpandWorkforce is a base-level transition; the worker it produces starts
// Idle.
type Phase uint8

const (
	Idle Phase = iota
	EnRouteToResource
	Gathering
	EnRouteToBase
	Depositing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case EnRouteToResource:
		return "en-route-to-resource"
	case Gathering:
		return "gathering"
	case EnRouteToBase:
		return "en-route-to-base"
	case Depositing:
		return "depositing"
	default:
		return "unknown"
	}
}
