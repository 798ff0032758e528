package device

import (
	"fmt"
	"strings"
)

// MaxIDLength is the longest identifier the supervisory controller accepts.
const MaxIDLength = 14

// NormalizeID lower-cases raw, drops every character outside [a-z0-9]
// and truncates to MaxIDLength.
func NormalizeID(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == MaxIDLength {
				break
			}
		}
	}
	return b.String()
}

// Normalize returns desc with its identifier normalized, the family resolved
// from its configured spelling, and an empty name replaced by the identifier.
// It fails when a required field is missing or a topic contains a wildcard.
func Normalize(desc Descriptor) (Descriptor, error) {
	id := NormalizeID(desc.ID)
	if id == "" {
		return desc, fmt.Errorf("%w: id %q is empty after normalization", ErrInvalidDescriptor, desc.ID)
	}

	family, ok := ParseFamily(string(desc.Family))
	if !ok {
		return desc, fmt.Errorf("%w: %q", ErrUnknownFamily, desc.Family)
	}

	out := Descriptor{
		ID:           id,
		Name:         strings.TrimSpace(desc.Name),
		Family:       family,
		StatusTopic:  strings.TrimSpace(desc.StatusTopic),
		CommandTopic: strings.TrimSpace(desc.CommandTopic),
	}
	if out.Name == "" {
		out.Name = id
	}

	if out.StatusTopic == "" {
		return desc, fmt.Errorf("%w: %s: status_topic is required", ErrInvalidDescriptor, id)
	}
	if hasWildcard(out.StatusTopic) {
		return desc, fmt.Errorf("%w: %s: status_topic %q contains a wildcard", ErrInvalidDescriptor, id, out.StatusTopic)
	}
	if family.AcceptsCommands() && out.CommandTopic == "" {
		return desc, fmt.Errorf("%w: %s: cmd_topic is required for %s", ErrInvalidDescriptor, id, family)
	}
	if hasWildcard(out.CommandTopic) {
		return desc, fmt.Errorf("%w: %s: cmd_topic %q contains a wildcard", ErrInvalidDescriptor, id, out.CommandTopic)
	}

	return out, nil
}

func hasWildcard(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}
