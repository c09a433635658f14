package characters

// Record types. PCs are player-owned; NPCs belong to the organization and
// never carry a user.
const (
	TypePC  = "PC"
	TypeNPC = "NPC"
)

// Character is one registry record. Type, venue, owner presence and org unit
// are fixed at creation; only the dedicated move operation changes the org
// unit, and deletion just clears Active.
type Character struct {
	ID      int64  `json:"id"`
	UserID  *int64 `json:"userid,omitempty"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Venue   string `json:"venue"`
	OrgUnit int    `json:"orgunit"`
	Active  bool   `json:"active"`
}

// ValidType reports whether t is one of the two record types.
func ValidType(t string) bool {
	return t == TypePC || t == TypeNPC
}
