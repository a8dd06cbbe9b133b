package entitystore

import (
	qb "github.com/pful/pico/querybuilder"
)

// Aliases of the templates every Service registers.
const (
	TemplateEntityByID        = "entity.by_id"
	TemplateEntityByType      = "entity.by_type"
	TemplateEntityWithField   = "entity.with_field"
	TemplateGroupAddCandidate = "group.add_candidate"
	TemplateGroupMembers      = "group.members"
	TemplateGroupUnion        = "group.union"
	TemplateGroupIntersection = "group.intersection"
	TemplateGroupDifference   = "group.difference"
)

// Template variables.
const (
	VarAppID    = "APP_ID"
	VarEntityID = "ENTITY_ID"
	VarType     = "TYPE"
	VarField    = "FIELD"
	VarGroups   = "GROUPS"
	VarGroup1   = "GROUP_1"
	VarGroup2   = "GROUP_2"
)

func appScoped(t qb.TemplateExpression) qb.TemplateExpression {
	return t.TemplateField(FieldAppID).Is(VarAppID)
}

var standardTemplates = []struct {
	alias string
	build func(qb.TemplateExpression) qb.TemplateExpression
}{
	{
		alias: TemplateEntityByID,
		build: func(t qb.TemplateExpression) qb.TemplateExpression {
			return appScoped(t).TemplateField(FieldID).Is(VarEntityID)
		},
	},
	{
		alias: TemplateEntityByType,
		build: func(t qb.TemplateExpression) qb.TemplateExpression {
			return appScoped(t).TemplateField(FieldType).Is(VarType)
		},
	},
	{
		// {app_id: <#APP_ID>, <#FIELD>: {$exists: true}}
		alias: TemplateEntityWithField,
		build: func(t qb.TemplateExpression) qb.TemplateExpression {
			return appScoped(t).TemplateField(FieldProperties).Exists(VarField)
		},
	},
	{
		alias: TemplateGroupAddCandidate,
		build: func(t qb.TemplateExpression) qb.TemplateExpression {
			return appScoped(t).
				TemplateField(FieldID).Is(VarEntityID).
				TemplateField(FieldGroups).NinValues(VarGroups)
		},
	},
	{
		alias: TemplateGroupMembers,
		build: func(t qb.TemplateExpression) qb.TemplateExpression {
			return appScoped(t).TemplateField(FieldGroups).InValues(VarGroups)
		},
	},
	{
		// {app_id: <#APP_ID>, $or: [{groups: <#GROUP_1>}, {groups: <#GROUP_2>}]}
		alias: TemplateGroupUnion,
		build: func(t qb.TemplateExpression) qb.TemplateExpression {
			return appScoped(t).AnyOf(
				qb.TemplateField(FieldGroups).Is(VarGroup1),
				qb.TemplateField(FieldGroups).Is(VarGroup2),
			)
		},
	},
	{
		alias: TemplateGroupIntersection,
		build: func(t qb.TemplateExpression) qb.TemplateExpression {
			return appScoped(t).TemplateField(FieldGroups).AllValues(VarGroups)
		},
	},
	{
		// {app_id: <#APP_ID>, $and: [{groups: <#GROUP_1>}, {groups: {$ne: <#GROUP_2>}}]}
		alias: TemplateGroupDifference,
		build: func(t qb.TemplateExpression) qb.TemplateExpression {
			return appScoped(t).AllOf(
				qb.TemplateField(FieldGroups).Is(VarGroup1),
				qb.TemplateField(FieldGroups).Ne(VarGroup2),
			)
		},
	},
}

// RegisterStandardTemplates registers the templates the Service renders its recurring filters from.
func RegisterStandardTemplates(registry *qb.Registry) error {
	for _, tpl := range standardTemplates {
		if _, err := registry.RegisterTemplate(tpl.alias, tpl.build); err != nil {
			return err
		}
	}

	return nil
}
