package accounts

type Status string

const (
	StatusOpen      Status = "abierta"
	StatusFinalized Status = "finalizada"
	StatusClosed    Status = "cerrada"
	StatusCancelled Status = "cancelada"
)

// Transitions a client may request. The backend sets the initial status and
// is the only party that actually changes it.
var validNext = map[Status]map[Status]bool{
	StatusOpen:      {StatusFinalized: true, StatusClosed: true},
	StatusFinalized: {StatusOpen: true, StatusClosed: true},
	StatusClosed:    {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}
