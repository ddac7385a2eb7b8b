package chat

// Status tracks the delivery lifecycle of a message.
// StatusSending exists only on the client before the server has persisted
// the message; it is never stored.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusRank = map[Status]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the position of s in the lifecycle. Unknown statuses rank
// below sending so they never overwrite anything.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvance reports whether a transition from s to next moves the
// lifecycle forward. Status never regresses: read stays read.
func (s Status) CanAdvance(next Status) bool {
	return next.Valid() && next.Rank() > s.Rank()
}
