// Package carpool holds the domain model for the reservation workflow: users,
// carpools, membership links and the lifecycle state machine.
package carpool

// MaxParticipants is the number of participants (excluding the host) a
// carpool holds when full. The 4th join flips the carpool to full.
const MaxParticipants = 4

// Carpool is a ride-sharing unit: one host, up to MaxParticipants
// participants, and a lifecycle status. The winner is set once, at close.
type Carpool struct {
	ID               string `json:"id"`
	Host             string `json:"host"`
	Genre            string `json:"genre"`
	LicencePlate     string `json:"licencePlate"`
	Status           Status `json:"status"`
	ParticipantCount int    `json:"participantCount"`
	Winner           string `json:"winner,omitempty"`
}

// Location is a user's last reported position.
type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// User is identified by a unique, user-supplied name.
type User struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Membership links a user to a carpool. The host has a membership row too, in
// addition to the carpool's own record. IsWinner is only ever set on a
// participant row, at close time.
type Membership struct {
	CarpoolID string `json:"id"`
	UserName  string `json:"user,omitempty"`
	IsHost    bool   `json:"isHost,omitempty"`
	IsWinner  bool   `json:"isWinner,omitempty"`
	Status    Status `json:"status,omitempty"`
}

// Crew is the resolved set of users linked to a carpool.
type Crew struct {
	Host         string   `json:"host"`
	Participants []string `json:"participants"`
}

// Complete reports whether the crew has a host and a full participant set.
// The close transaction requires a complete crew: it must touch every
// membership row.
func (c Crew) Complete() bool {
	return c.Host != "" && len(c.Participants) == MaxParticipants
}

// HasParticipant reports whether name is one of the crew's participants.
func (c Crew) HasParticipant(name string) bool {
	for _, p := range c.Participants {
		if p == name {
			return true
		}
	}
	return false
}
