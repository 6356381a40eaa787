package domain

// Actor is the already-authenticated caller. Identity is owned by an external
// provider; the engine only reads these fields.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	CanCreate   bool   `json:"can_create"`
}

func (a Actor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.ID
}
