package entitystore

import (
	"errors"
	"slices"

	jsoniter "github.com/json-iterator/go"

	qb "github.com/pful/pico/querybuilder"
)

// Field names of a stored entity document.
const (
	FieldAppID      = "app_id"
	FieldID         = "_id"
	FieldType       = "type"
	FieldProperties = "properties"
	FieldGroups     = "groups"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"
)

var entityJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ApplicationContext identifies the application an operation acts on. Every entity belongs to exactly one application.
type ApplicationContext struct {
	AppID string
}

// Validate returns ErrInvalidApplicationContext for an empty app id.
func (c ApplicationContext) Validate() error {
	if c.AppID == "" {
		return ErrInvalidApplicationContext
	}

	return nil
}

// Entity is a schemaless record: a type, free-form properties and the groups it belongs to.
// Timestamps are unix seconds.
type Entity struct {
	AppID      string         `json:"app_id"`
	ID         string         `json:"_id"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Groups     []string       `json:"groups,omitempty"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

// Entities is a list of Entity.
type Entities []Entity

// IDs returns the entity ids in list order.
func (es Entities) IDs() []string {
	ids := make([]string, 0, len(es))
	for _, e := range es {
		ids = append(ids, e.ID)
	}

	return ids
}

// InGroup reports whether the entity is a member of group.
func (e Entity) InGroup(group string) bool {
	return slices.Contains(e.Groups, group)
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	e.Groups = slices.Clone(e.Groups)
	if e.Properties != nil {
		e.Properties = qb.Document(e.Properties).Clone()
	}

	return e
}

// MarshalDocument encodes the entity as stored JSON.
func (e Entity) MarshalDocument() ([]byte, error) {
	return entityJSON.Marshal(e)
}

// Document returns the entity as a filter-comparable Document.
func (e Entity) Document() (qb.Document, error) {
	data, err := e.MarshalDocument()
	if err != nil {
		return nil, errors.Join(ErrDecodingEntityFailed, err)
	}

	return qb.ParseDocument(data)
}

// EntityFromJSON decodes a stored entity document.
func EntityFromJSON(data []byte) (Entity, error) {
	var e Entity
	if err := entityJSON.Unmarshal(data, &e); err != nil {
		return Entity{}, errors.Join(ErrDecodingEntityFailed, err)
	}

	return e, nil
}

// EntityFromDocument converts a Document produced by Entity.Document back into an Entity.
func EntityFromDocument(doc qb.Document) (Entity, error) {
	data, err := doc.JSON()
	if err != nil {
		return Entity{}, errors.Join(ErrDecodingEntityFailed, err)
	}

	return EntityFromJSON(data)
}
