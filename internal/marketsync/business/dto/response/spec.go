package response

// CategorySpecResponse -- список спецификаций полей одной категории,
// как его отдаёт маркетплейс.
type CategorySpecResponse struct {
	Category string          `json:"category"`
	Fields   []FieldSpecData `json:"fields"`
}

type FieldSpecData struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	RequiredLevel string   `json:"requiredLevel,omitempty"`
	AllowedValues []string `json:"allowedValues,omitempty"`
}
