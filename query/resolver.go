package query

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/core"
	"github.com/jay7-tech/memo-go/scene"
)

// OutcomeType indicates the kind of result a resolved utterance produced.
type OutcomeType int

const (
	// OutcomeAnswer carries plain text for the speech collaborator.
	OutcomeAnswer OutcomeType = iota

	// OutcomeModeChange asks the owner to flip the focus flag.
	OutcomeModeChange

	// OutcomeRegister asks the enrollment collaborator to capture a face.
	OutcomeRegister

	// OutcomeSelfie asks the camera collaborator to capture a photo.
	OutcomeSelfie
)

// Outcome is the resolver's single result for an utterance. Text is
// always set: for commands it is the spoken acknowledgement.
type Outcome struct {
	Type OutcomeType
	Text string

	// FocusEnabled is meaningful when Type is OutcomeModeChange.
	FocusEnabled bool

	// Name is meaningful when Type is OutcomeRegister.
	Name string
}

// Answer phrasing windows. These shape wording, not rule behavior, so
// they stay local to the resolver.
const (
	justNowWindow = 5 * time.Second
	secondsWindow = time.Minute
)

const notUnderstood = "Sorry, I didn't catch that. Try asking where something is, or what I can see."

// Resolver turns utterances into outcomes against a read-only view of
// scene memory. It holds no mutable state; all mutation happens in the
// owner applying the returned outcome.
type Resolver struct {
	log      *zap.Logger
	handlers map[IntentKind]func(Intent, *scene.Memory, time.Time) Outcome
}

// NewResolver builds a resolver with the full intent dispatch table.
func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{log: log.Named("query")}
	r.handlers = map[IntentKind]func(Intent, *scene.Memory, time.Time) Outcome{
		IntentLocate:     r.handleLocate,
		IntentPresence:   r.handlePresence,
		IntentCount:      r.handleCount,
		IntentEnumerate:  r.handleEnumerate,
		IntentStatus:     r.handleStatus,
		IntentPoseCheck:  r.handlePoseCheck,
		IntentWhoAmI:     r.handleWhoAmI,
		IntentModeToggle: r.handleModeToggle,
		IntentRegister:   r.handleRegister,
		IntentSelfie:     r.handleSelfie,
	}
	return r
}

// Resolve classifies and answers one utterance. It is total: any input,
// including empty or nonsense text, yields an Outcome.
func (r *Resolver) Resolve(utterance string, mem *scene.Memory) Outcome {
	return r.ResolveAt(utterance, mem, time.Now())
}

// ResolveAt is Resolve with an explicit clock, for deterministic callers.
func (r *Resolver) ResolveAt(utterance string, mem *scene.Memory, now time.Time) Outcome {
	intent := Classify(utterance)
	r.log.Debug("classified utterance",
		zap.String("utterance", utterance),
		zap.Stringer("intent", intent.Kind))

	handler, ok := r.handlers[intent.Kind]
	if !ok {
		return Outcome{Type: OutcomeAnswer, Text: notUnderstood}
	}
	return handler(intent, mem, now)
}

func (r *Resolver) handleLocate(intent Intent, mem *scene.Memory, now time.Time) Outcome {
	if intent.Object == "" {
		// A matched pattern with an empty capture is a parse problem,
		// never a default object.
		r.log.Warn("locate pattern matched with empty object capture")
		return Outcome{Type: OutcomeAnswer, Text: "What object are you looking for?"}
	}

	rec, name, found := mem.QueryObject(intent.Object)
	if !found {
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("I haven't seen %s recently. Let me keep looking.", name)}
	}

	age := now.Sub(rec.LastSeen)
	switch {
	case age < justNowWindow:
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("I see the %s. It's %s.", name, rec.Position)}
	case age < secondsWindow:
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("The %s was %s about %d seconds ago.", name, rec.Position, int(age.Seconds()))}
	default:
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("I last saw the %s at %s, it was %s.", name, rec.LastSeen.Format("15:04"), rec.Position)}
	}
}

func (r *Resolver) handlePresence(intent Intent, mem *scene.Memory, now time.Time) Outcome {
	if intent.Object == "" {
		r.log.Warn("presence pattern matched with empty object capture")
		return Outcome{Type: OutcomeAnswer, Text: "What object are you asking about?"}
	}

	rec, name, found := mem.QueryObject(intent.Object)
	if !found {
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("No, I haven't seen %s.", name)}
	}
	if age := now.Sub(rec.LastSeen); age >= justNowWindow {
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("Not right now. I last saw the %s %d seconds ago.", name, int(age.Seconds()))}
	}
	return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("Yes! I can see the %s right now.", name)}
}

func (r *Resolver) handleCount(intent Intent, mem *scene.Memory, now time.Time) Outcome {
	if intent.Object == "" {
		count := len(mem.VisibleLabels(now, justNowWindow))
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("I'm tracking %d kinds of object.", count)}
	}

	// One slot per label: this counts matching kinds, not instances.
	target := scene.Normalize(intent.Object)
	singular := strings.TrimSuffix(target, "s")
	count := 0
	for _, label := range mem.VisibleLabels(now, justNowWindow) {
		if strings.Contains(label, target) || strings.Contains(label, singular) {
			count++
		}
	}
	if count == 0 {
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("I don't see any %s right now.", intent.Object)}
	}
	return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("I can see %d %s.", count, intent.Object)}
}

func (r *Resolver) handleEnumerate(_ Intent, mem *scene.Memory, now time.Time) Outcome {
	visible := mem.VisibleLabels(now, justNowWindow)
	humanStatus := describeHuman(mem.Human())

	switch {
	case len(visible) > 0:
		text := fmt.Sprintf("I can see: %s.", strings.Join(visible, ", "))
		if humanStatus != "" {
			text += " " + humanStatus
		}
		return Outcome{Type: OutcomeAnswer, Text: text}
	case humanStatus != "":
		return Outcome{Type: OutcomeAnswer, Text: "I see a person. " + humanStatus}
	default:
		return Outcome{Type: OutcomeAnswer, Text: "I don't see anything specific right now."}
	}
}

func (r *Resolver) handleStatus(_ Intent, mem *scene.Memory, _ time.Time) Outcome {
	var parts []string
	human := mem.Human()
	if human.Present {
		who := human.Identity
		if who == "" {
			who = "Someone"
		}
		parts = append(parts, fmt.Sprintf("%s is %s", who, human.Pose))
	}
	if mem.FocusMode() {
		parts = append(parts, "Focus mode is on")
	}
	if count := mem.ObjectCount(); count > 0 {
		parts = append(parts, fmt.Sprintf("I'm tracking %d objects", count))
	}

	if len(parts) == 0 {
		return Outcome{Type: OutcomeAnswer, Text: "All quiet. Nothing specific to report."}
	}
	return Outcome{Type: OutcomeAnswer, Text: strings.Join(parts, ". ") + "."}
}

func (r *Resolver) handlePoseCheck(_ Intent, mem *scene.Memory, _ time.Time) Outcome {
	human := mem.Human()
	if !human.Present {
		return Outcome{Type: OutcomeAnswer, Text: "I don't see you right now."}
	}
	if human.Pose == core.PoseUnknown {
		return Outcome{Type: OutcomeAnswer, Text: "I can't tell whether you're sitting or standing right now."}
	}
	return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("You are %s.", human.Pose)}
}

func (r *Resolver) handleWhoAmI(_ Intent, mem *scene.Memory, _ time.Time) Outcome {
	human := mem.Human()
	switch {
	case human.Identity != "":
		return Outcome{Type: OutcomeAnswer, Text: fmt.Sprintf("You are %s!", human.Identity)}
	case human.Present:
		return Outcome{Type: OutcomeAnswer, Text: "I can see you, but I don't recognize you. Say 'register me as' followed by your name."}
	default:
		return Outcome{Type: OutcomeAnswer, Text: "I don't see anyone right now."}
	}
}

func (r *Resolver) handleModeToggle(intent Intent, _ *scene.Memory, _ time.Time) Outcome {
	text := "Focus mode disabled."
	if intent.Enabled {
		text = "Focus mode enabled. I will watch for distractions."
	}
	return Outcome{Type: OutcomeModeChange, FocusEnabled: intent.Enabled, Text: text}
}

func (r *Resolver) handleRegister(intent Intent, _ *scene.Memory, _ time.Time) Outcome {
	name := strings.TrimSpace(intent.Name)
	if len(name) < 2 {
		name = "User"
	}
	name = titleCase(name)
	return Outcome{
		Type: OutcomeRegister,
		Name: name,
		Text: fmt.Sprintf("Look at the camera, %s. Registering your face...", name),
	}
}

func (r *Resolver) handleSelfie(_ Intent, _ *scene.Memory, _ time.Time) Outcome {
	return Outcome{Type: OutcomeSelfie, Text: "Say cheese!"}
}

func describeHuman(human scene.HumanState) string {
	if !human.Present {
		return ""
	}
	if human.Identity != "" {
		return fmt.Sprintf("%s is %s.", human.Identity, human.Pose)
	}
	return fmt.Sprintf("Someone is %s.", human.Pose)
}

func titleCase(name string) string {
	words := strings.Fields(name)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
