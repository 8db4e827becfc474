package models

// View is the read-only projection handed to the presentation layer.
type View struct {
	Title           string   `json:"title"`
	Time            string   `json:"time"`
	Members         []Member `json:"members"`
	DefaultColor    bool     `json:"default_color"`
	Shuffling       bool     `json:"shuffling"`
	Revealed        bool     `json:"revealed"`
	BackgroundImage string   `json:"background_image"`
	AudioPlaying    bool     `json:"audio_playing"`
}

// SelectedMember returns the member currently highlighted, if any.
func (v View) SelectedMember() (Member, bool) {
	for _, m := range v.Members {
		if m.Selected {
			return m, true
		}
	}
	return Member{}, false
}
