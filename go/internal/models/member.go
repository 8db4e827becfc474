package models

// Member is one person on the standup roster.
type Member struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
	Disabled bool   `json:"disabled"`

	// Seconds remaining when the member's countdown first ticked and when it last ticked.
	TimeStarted *int `json:"time_started,omitempty"`
	TimeEnded   *int `json:"time_ended,omitempty"`
}

// MembersFromTeam builds a fresh roster from the configured team definitions.
func MembersFromTeam(team []TeamMember) []Member {
	members := make([]Member, len(team))
	for i, tm := range team {
		members[i] = Member{
			Name:     tm.Name,
			Disabled: tm.Disabled,
		}
	}
	return members
}

// CloneMembers returns a copy of the slice that can be changed without touching the input.
func CloneMembers(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	return out
}

// IndexOf returns the position of the named member, or -1.
func IndexOf(members []Member, name string) int {
	for i := range members {
		if members[i].Name == name {
			return i
		}
	}
	return -1
}
