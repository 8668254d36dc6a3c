package submitter

import (
	"strings"

	"jobapplicator/internal/types"
)

// labelRule maps label keywords to a profile value. Rules are tried in order.
type labelRule struct {
	keywords []string
	value    func(types.UserProfile) string
}

var labelRules = []labelRule{
	{keywords: []string{"full name", "name"}, value: func(p types.UserProfile) string { return p.Name }},
	{keywords: []string{"email"}, value: func(p types.UserProfile) string { return p.Email }},
	{keywords: []string{"phone", "telephone", "mobile"}, value: func(p types.UserProfile) string { return p.Phone }},
}

// ResolveValue picks the profile value for a field from its human label using
// a case-insensitive substring match. ok is false when no rule applies; the
// field id and type never influence the result.
func ResolveValue(label string, profile types.UserProfile) (value string, ok bool) {
	l := strings.ToLower(label)
	for _, rule := range labelRules {
		for _, kw := range rule.keywords {
			if strings.Contains(l, kw) {
				return rule.value(profile), true
			}
		}
	}
	return "", false
}
