package entity

// EntityType classifies a typed entity extracted from article text.
type EntityType string

const (
	// EntityLocation is a place name (province, district, beach, road).
	EntityLocation EntityType = "location"
	// EntityPerson is a named or described person (victim, suspect, official).
	EntityPerson EntityType = "person"
	// EntityOrganization is a company, agency or institution.
	EntityOrganization EntityType = "organization"
	// EntityEvent is an incident type (drowning, crash, arrest).
	EntityEvent EntityType = "event"
)

// IsValid reports whether the entity type is one of the known categories.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityLocation, EntityPerson, EntityOrganization, EntityEvent:
		return true
	}
	return false
}

// ExtractedEntity is one typed entity pulled from an article's title and
// content by the LLM-backed extractor. Values are kept verbatim as the model
// returned them; matching against article text is substring based.
type ExtractedEntity struct {
	Type  EntityType
	Value string
}

// FilterByType returns the values of all entities with the given type.
func FilterByType(entities []ExtractedEntity, t EntityType) []string {
	var values []string
	for _, e := range entities {
		if e.Type == t && e.Value != "" {
			values = append(values, e.Value)
		}
	}
	return values
}
