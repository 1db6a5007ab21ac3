package types

// EntityMetadata is the human-facing description of a recognizable entity
// (an exhibit, artwork, etc.) as returned by the catalog.
type EntityMetadata struct {
	ID          string `json:"id"`                     // Entity identifier, equal to the classifier label
	DisplayName string `json:"displayName"`            // Name shown to visitors
	Known       bool   `json:"known"`                  // False for the unknown-entity sentinel
	Description string `json:"description,omitempty"`  // Optional short description
	ImageURL    string `json:"imageUrl,omitempty"`     // Optional thumbnail
}

// UnknownEntityName is the display name used for labels with no catalog entry.
const UnknownEntityName = "Unknown entity"

// UnknownEntity returns the sentinel metadata for a label the catalog does not know,
// e.g. a stale classifier trained on a deleted entity.
func UnknownEntity(label string) EntityMetadata {
	return EntityMetadata{
		ID:          label,
		DisplayName: UnknownEntityName,
		Known:       false,
	}
}
