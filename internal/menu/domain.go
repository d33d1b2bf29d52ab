package menu

// Entry is a flat menu row as stored.
type Entry struct {
	ID                 int64  `json:"id"`
	Label              string `json:"label"`
	Path               string `json:"path"`
	Icon               string `json:"icon,omitempty"`
	RequiredPermission string `json:"required_permission,omitempty"`
	ParentID           *int64 `json:"parent_id,omitempty"`
	SortOrder          int    `json:"sort_order"`
}

// Node is a visible entry with its visible children.
type Node struct {
	ID       int64   `json:"id"`
	Label    string  `json:"label"`
	Path     string  `json:"path"`
	Icon     string  `json:"icon,omitempty"`
	Children []*Node `json:"children"`
}

// Input carries create and update payloads.
type Input struct {
	Label              string `json:"label" validate:"required,max=100"`
	Path               string `json:"path" validate:"max=255"`
	Icon               string `json:"icon" validate:"max=100"`
	RequiredPermission string `json:"required_permission" validate:"max=100"`
	ParentID           *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	SortOrder          int    `json:"sort_order"`
}
