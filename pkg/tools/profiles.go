package tools

import "opensentinel/pkg/errors"

// Scan profiles are named tool presets the API accepts in place of an
// explicit tool list.
const (
	ProfileQuick = "quick"
	ProfileFull  = "full"
)

var profiles = map[string][]string{
	ProfileQuick: {
		ToolBasicHeaderScan,
		ToolPortScan,
		ToolNucleiScan,
		ToolTechDetection,
	},
	ProfileFull: AllToolIDs(),
}

// ProfileTools resolves a profile name to its tool ids.
func ProfileTools(profile string) ([]string, error) {
	ids, ok := profiles[profile]
	if !ok {
		return nil, &errors.ValidationError{
			Field:   "profile",
			Value:   profile,
			Message: "unknown scan profile",
		}
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

// ProfileNames lists the available profile names.
func ProfileNames() []string {
	return []string{ProfileFull, ProfileQuick}
}
