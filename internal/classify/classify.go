package classify

import "strings"

// State classifies a follow control: actionable, already active, or neither.
type State string

const (
	StateFollow          State = "follow"
	StateAlreadyFollowed State = "already followed"
	StateUnknown         State = "unknown"
)

// LinkedIn's English UI toggles between "Follow" and "Following"; some
// company pages use "Follow company" as the call-to-action.
var (
	followKeywords    = []string{"follow", "follow company"}
	followingKeywords = []string{"following"}
)

// ButtonSnapshot is a serializable capture of a follow button's visible
// state, as reported by the extension or built in tests.
type ButtonSnapshot struct {
	Texts       []string `json:"texts"`
	AriaLabel   string   `json:"aria_label"`
	AriaPressed string   `json:"aria_pressed"`
	Disabled    bool     `json:"disabled"`
}

func (s ButtonSnapshot) normalized() ButtonSnapshot {
	out := ButtonSnapshot{
		AriaLabel:   strings.ToLower(strings.TrimSpace(s.AriaLabel)),
		AriaPressed: strings.ToLower(strings.TrimSpace(s.AriaPressed)),
		Disabled:    s.Disabled,
	}
	for _, t := range s.Texts {
		if cleaned := strings.ToLower(strings.TrimSpace(t)); cleaned != "" {
			out.Texts = append(out.Texts, cleaned)
		}
	}
	return out
}

func hasAny(texts []string, keywords []string) bool {
	for _, t := range texts {
		for _, k := range keywords {
			if t == k {
				return true
			}
		}
	}
	return false
}

func labelContainsAny(label string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}

// Evaluate decides whether the snapshot represents a clickable Follow
// control, an already-followed state, or something unexpected. Unknown means
// the element does not match LinkedIn semantics and should be treated as an
// error by the caller.
func Evaluate(snapshot ButtonSnapshot) State {
	s := snapshot.normalized()

	if s.Disabled {
		return StateUnknown
	}
	if s.AriaPressed == "true" {
		return StateAlreadyFollowed
	}
	if labelContainsAny(s.AriaLabel, followingKeywords) {
		return StateAlreadyFollowed
	}
	if hasAny(s.Texts, followingKeywords) {
		return StateAlreadyFollowed
	}

	hasFollowText := hasAny(s.Texts, followKeywords)
	hasFollowLabel := labelContainsAny(s.AriaLabel, followKeywords)
	ariaFalse := s.AriaPressed == "" || s.AriaPressed == "false"

	if (hasFollowText || hasFollowLabel) && ariaFalse {
		return StateFollow
	}
	// The aria attributes are sometimes omitted while the button text stays
	// correct; the control is still actionable then.
	if hasFollowText {
		return StateFollow
	}
	return StateUnknown
}
