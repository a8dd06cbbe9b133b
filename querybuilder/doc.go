// Package querybuilder builds Mongo-style filter documents and compiles reusable query templates.
//
// Filters are immutable values assembled from predicates and combinators:
//   - Field(name) with Is/Eq, Ne, Gt, Gte, Lt, Lte, InValues, NinValues, AllValues and Exists
//   - AllOf, AnyOf and NoneOf rendering $and, $or and $nor over their children in argument order
//
// Top-level nodes of an Expression are merged by shallow key union. When two top-level nodes render
// the same key the later one wins; wrap them in AllOf to keep both. Expression.Collisions reports such keys.
//
// Templates replace operands with named variables. A template is compiled once, stored in a Registry
// under an alias and rendered through a VariableBinder as often as needed:
//
//	registry := querybuilder.NewRegistry()
//	registry.MustRegister("entity.by_type", func(t querybuilder.TemplateExpression) querybuilder.TemplateExpression {
//		return t.TemplateField("app_id").Is("APP_ID").
//			TemplateField("type").Is("TYPE")
//	})
//
//	binder, err := registry.OpenQuery("entity.by_type")
//	if err != nil {
//		// handle error
//	}
//
//	filter, err := binder.
//		Bind("APP_ID", querybuilder.Str("app42")).
//		Bind("TYPE", querybuilder.Str("book")).
//		ToResolvedJSON()
//
// Binding never modifies the template, so binders opened on the same alias are independent.
// Unbound variables render as the sentinel "<#NAME>"; ToResolvedJSON rejects them instead.
// For an Exists placeholder the variable stands for the field key: binding a string renames the key.
package querybuilder
