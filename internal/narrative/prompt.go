package narrative

import (
	"fmt"
	"strings"
)

// Scene is the situation around one player action.
type Scene struct {
	Actor    string
	Action   string
	Location string
	Species  string
	Round    int
	HP       float64
	MaxHP    float64
}

// Summary renders the short situational context sent with the action.
func (s Scene) Summary() string {
	var b strings.Builder
	location := s.Location
	if location == "" {
		location = "unknown"
	}
	fmt.Fprintf(&b, "Location: %s. Round %d.", location, s.Round)
	if s.Species != "" {
		fmt.Fprintf(&b, " %s is a %s.", s.Actor, s.Species)
	}
	if s.MaxHP > 0 {
		fmt.Fprintf(&b, " Vitals: %g/%g HP.", s.HP, s.MaxHP)
	}
	return b.String()
}

func systemPrompt(persona, summary string) string {
	return persona + "\n\nCurrent situation: " + summary
}

func actionPrompt(actor, action string) string {
	return fmt.Sprintf("%s: %s", actor, action)
}
