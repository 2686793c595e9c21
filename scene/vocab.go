package scene

import "strings"

// synonyms maps spoken object names to detector labels. Shared between
// the scene lookup and the query resolver so both resolve "phone" and
// "cell phone" to the same record.
var synonyms = map[string]string{
	"water":        "bottle",
	"water bottle": "bottle",
	"drink":        "bottle",
	"phone":        "cell phone",
	"mobile":       "cell phone",
	"smartphone":   "cell phone",
	"cellphone":    "cell phone",
	"computer":     "laptop",
	"notebook":     "laptop",
	"mug":          "cup",
	"coffee cup":   "cup",
	"keys":         "keyboard",
	"tv remote":    "remote",
	"spectacles":   "glasses",
	"wallet":       "purse",
	"human":        "person",
	"someone":      "person",
}

var articles = []string{"the ", "a ", "an ", "my ", "your "}

// Normalize lowercases, trims, strips leading articles, and applies the
// synonym table to a user-facing object name.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, "?")
	name = strings.TrimSpace(name)
	for _, article := range articles {
		if strings.HasPrefix(name, article) {
			name = name[len(article):]
			break
		}
	}
	if canonical, ok := synonyms[name]; ok {
		return canonical
	}
	return name
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
