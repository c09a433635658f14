package tags

// Record types. Tags are typed like the characters they annotate.
const (
	TypePC  = "PC"
	TypeNPC = "NPC"
)

// Tag annotates characters within a single venue.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Venue string `json:"venue"`
}

// ValidType reports whether t is one of the two record types.
func ValidType(t string) bool {
	return t == TypePC || t == TypeNPC
}
