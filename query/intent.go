// Package query resolves free-text utterances against scene memory.
//
// Resolution is intent classification over a small closed vocabulary,
// not open-domain language understanding. The matching layer (how text
// maps to an Intent) is kept separate from the handling layer (what an
// intent does), so patterns can grow without touching answer logic.
package query

import (
	"regexp"
	"strings"
)

// IntentKind enumerates the closed set of things the resolver understands.
type IntentKind int

const (
	IntentUnknown IntentKind = iota
	IntentLocate
	IntentPresence
	IntentCount
	IntentEnumerate
	IntentStatus
	IntentPoseCheck
	IntentWhoAmI
	IntentModeToggle
	IntentRegister
	IntentSelfie
)

func (k IntentKind) String() string {
	switch k {
	case IntentLocate:
		return "locate"
	case IntentPresence:
		return "presence"
	case IntentCount:
		return "count"
	case IntentEnumerate:
		return "enumerate"
	case IntentStatus:
		return "status"
	case IntentPoseCheck:
		return "pose_check"
	case IntentWhoAmI:
		return "who_am_i"
	case IntentModeToggle:
		return "mode_toggle"
	case IntentRegister:
		return "register"
	case IntentSelfie:
		return "selfie"
	default:
		return "unknown"
	}
}

// Intent is a classified utterance. Object carries the captured object
// name for Locate/Presence/Count; Name the captured person name for
// Register; Enabled the direction of a ModeToggle.
type Intent struct {
	Kind    IntentKind
	Object  string
	Name    string
	Enabled bool
}

const article = `(?:the |my |your |a |an )?`

var (
	locatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^where(?:'s| is| are| was)\s+` + article + `(.*?)\??$`),
		regexp.MustCompile(`^(?:find|locate|look for|search for)\s+` + article + `(.*?)\??$`),
		regexp.MustCompile(`^where did (?:i put|you see)\s+` + article + `(.*?)\??$`),
	}
	presencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(?:do|can) you see\s+` + article + `(.*?)\??$`),
		regexp.MustCompile(`^(?:is|are)\s+(?:there\s+)?` + article + `(.+?)\s+(?:here|nearby|around|visible)\??$`),
		regexp.MustCompile(`^(?:have you seen|did you see)\s+` + article + `(.*?)\??$`),
	}
	countPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^how many\s+(.+?)(?:\s+(?:are there|do you see))?\??$`),
		regexp.MustCompile(`^count\s+(?:the\s+)?(.+?)\??$`),
	}
	enumeratePattern = regexp.MustCompile(`what (?:do|can) you see|describe (?:the )?(?:scene|room|environment)|tell me what you see|what objects`)
	statusPattern    = regexp.MustCompile(`what(?:'s| is) (?:happening|going on)|^status\??$|how(?:'s| is) (?:it going|everything)`)
	posePattern      = regexp.MustCompile(`am i (?:sitting|standing)|sitting or standing|what(?:'s| is) my posture`)
	whoAmIPattern    = regexp.MustCompile(`who am i|who i am|do you (?:know|recognize) me|what(?:'s| is) my name|who is (?:here|there|present)`)
	registerPattern  = regexp.MustCompile(`^register(?:\s+(?:me|my face))?(?:\s+as)?(?:\s+(.*?))?\??$`)
)

var (
	focusOnPhrases = []string{
		"focus on", "focus mode on", "enable focus", "start focus",
		"turn on focus", "activate focus", "watch me",
	}
	focusOffPhrases = []string{
		"focus off", "focus mode off", "disable focus", "stop focus",
		"turn off focus", "deactivate focus", "end focus", "no focus",
	}
	registerPhrases = []string{"remember me", "learn my face", "save my face", "add my face", "recognize me"}
	selfiePhrases   = []string{"selfie", "take a photo", "take photo", "take a picture", "take picture", "cheese"}
)

// Classify maps a normalized utterance to an Intent. Matching runs in
// fixed priority order; the first hit wins.
func Classify(utterance string) Intent {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return Intent{Kind: IntentUnknown}
	}

	for _, re := range locatePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return Intent{Kind: IntentLocate, Object: strings.TrimSpace(m[1])}
		}
	}
	for _, re := range presencePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return Intent{Kind: IntentPresence, Object: trimPlaceSuffix(strings.TrimSpace(m[1]))}
		}
	}
	for _, re := range countPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return Intent{Kind: IntentCount, Object: strings.TrimSpace(m[1])}
		}
	}
	if enumeratePattern.MatchString(text) {
		return Intent{Kind: IntentEnumerate}
	}
	if posePattern.MatchString(text) {
		return Intent{Kind: IntentPoseCheck}
	}
	if whoAmIPattern.MatchString(text) {
		return Intent{Kind: IntentWhoAmI}
	}
	if statusPattern.MatchString(text) {
		return Intent{Kind: IntentStatus}
	}
	for _, phrase := range focusOnPhrases {
		if strings.Contains(text, phrase) {
			return Intent{Kind: IntentModeToggle, Enabled: true}
		}
	}
	for _, phrase := range focusOffPhrases {
		if strings.Contains(text, phrase) {
			return Intent{Kind: IntentModeToggle, Enabled: false}
		}
	}
	if m := registerPattern.FindStringSubmatch(text); m != nil {
		return Intent{Kind: IntentRegister, Name: strings.TrimSpace(m[1])}
	}
	for _, phrase := range registerPhrases {
		if strings.Contains(text, phrase) {
			return Intent{Kind: IntentRegister}
		}
	}
	for _, phrase := range selfiePhrases {
		if strings.Contains(text, phrase) {
			return Intent{Kind: IntentSelfie}
		}
	}
	return Intent{Kind: IntentUnknown}
}

// trimPlaceSuffix drops trailing place words a presence pattern may have
// swallowed into its capture ("is my bottle still here" → "bottle still").
func trimPlaceSuffix(object string) string {
	for _, suffix := range []string{" here", " nearby", " around", " visible", " still"} {
		object = strings.TrimSuffix(object, suffix)
	}
	return strings.TrimSpace(object)
}
