package models

type SpecType string

const (
	SpecString    SpecType = "string"
	SpecNumber    SpecType = "number"
	SpecBoolean   SpecType = "boolean"
	SpecArray     SpecType = "array"
	SpecLocalized SpecType = "localized"
)

type RequiredLevel string

const (
	LevelRequired    RequiredLevel = "required"
	LevelRecommended RequiredLevel = "recommended"
	LevelVisible     RequiredLevel = "visible"
	LevelSystem      RequiredLevel = "system"
	LevelNone        RequiredLevel = ""
)

// FieldSpec -- ограничение маркетплейса на одно поле в одной категории.
// Кэш со спеками советующий: финальную проверку всё равно делает маркетплейс.
type FieldSpec struct {
	Category      string
	Field         string
	Type          SpecType
	Required      RequiredLevel
	AllowedValues []string
}

// Allows проверяет кандидата по allowed-set (точное, регистрозависимое
// совпадение). Пустой set разрешает всё.
func (s FieldSpec) Allows(candidate string) bool {
	if len(s.AllowedValues) == 0 {
		return true
	}
	for _, v := range s.AllowedValues {
		if v == candidate {
			return true
		}
	}
	return false
}

// DefaultValue -- первый разрешённый вариант; используется как мягкий
// авто-ремонт при провале allowed-set проверки.
func (s FieldSpec) DefaultValue() (string, bool) {
	if len(s.AllowedValues) == 0 {
		return "", false
	}
	return s.AllowedValues[0], true
}
