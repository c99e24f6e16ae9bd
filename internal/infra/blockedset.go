package infra

import (
	"encoding/json"
	"strings"

	"github.com/eliteGoblin/focusd/scrolloff/internal/domain"
)

// BlockedAppsKey is the preferences key shared with the UI shell.
const BlockedAppsKey = "flutter.scrolloff_blocked_apps"

// DecodeBlockedSet reads a stored blocked-set value. Accepted encodings:
//
//	["a","b"]        native string list
//	"a,b,c"          comma-separated string (older shell versions)
//	"[\"a\",\"b\"]"  list serialized into a string
//
// Missing, empty or malformed values decode to the empty set.
func DecodeBlockedSet(raw json.RawMessage) domain.BlockedSet {
	set := domain.NewBlockedSet()
	if len(raw) == 0 {
		return set
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, p := range list {
			set.Add(strings.TrimSpace(p))
		}
		return set
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseBlockedSetString(s)
	}

	return set
}

// ParseBlockedSetString decodes the legacy string encodings.
func ParseBlockedSetString(value string) domain.BlockedSet {
	set := domain.NewBlockedSet()
	value = strings.TrimSpace(value)

	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		value = value[1 : len(value)-1]
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			part = strings.TrimSuffix(strings.TrimPrefix(part, `"`), `"`)
			set.Add(part)
		}
		return set
	}

	for _, part := range strings.Split(value, ",") {
		set.Add(strings.TrimSpace(part))
	}
	return set
}

// EncodeBlockedSet produces the native encoding: a sorted string list.
func EncodeBlockedSet(set domain.BlockedSet) json.RawMessage {
	data, _ := json.Marshal(set.Sorted())
	return data
}
