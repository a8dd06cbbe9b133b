package querybuilder

// FieldOperator is bound to one field name and produces exactly one predicate per terminal call.
//
// R is what a terminal call returns: a Node for free-standing predicates built with Field,
// or the owning Expression/TemplateExpression when reached through their Field method.
type FieldOperator[R any] struct {
	name string
	emit func(Node) R
}

// Field starts a free-standing predicate, e.g. as a child of AllOf, AnyOf or NoneOf.
func Field(name string) FieldOperator[Node] {
	return FieldOperator[Node]{name: name, emit: func(n Node) Node { return n }}
}

// Is matches documents whose field equals value.
func (fo FieldOperator[R]) Is(value Value) R {
	return fo.emit(Literal{field: fo.name, value: value})
}

// Eq is an alias of Is.
func (fo FieldOperator[R]) Eq(value Value) R {
	return fo.Is(value)
}

// Ne renders {field: {"$ne": value}}.
func (fo FieldOperator[R]) Ne(value Value) R {
	return fo.compare(OpNe, value)
}

// Gt renders {field: {"$gt": value}}.
func (fo FieldOperator[R]) Gt(value Value) R {
	return fo.compare(OpGt, value)
}

// Gte renders {field: {"$gte": value}}.
func (fo FieldOperator[R]) Gte(value Value) R {
	return fo.compare(OpGte, value)
}

// Lt renders {field: {"$lt": value}}.
func (fo FieldOperator[R]) Lt(value Value) R {
	return fo.compare(OpLt, value)
}

// Lte renders {field: {"$lte": value}}.
func (fo FieldOperator[R]) Lte(value Value) R {
	return fo.compare(OpLte, value)
}

// InValues renders {field: {"$in": [values...]}} in the given order.
//
// A single List argument is taken as the array itself, so collection- and variadic-shaped
// input render the same. To match one array-valued element, wrap it once more:
// InValues(List(Strings("a", "b"))) renders {"$in": [["a", "b"]]}.
func (fo FieldOperator[R]) InValues(values ...Value) R {
	return fo.compare(OpIn, arrayOperand(values))
}

// NinValues renders {field: {"$nin": [values...]}} in the given order.
func (fo FieldOperator[R]) NinValues(values ...Value) R {
	return fo.compare(OpNin, arrayOperand(values))
}

// AllValues renders {field: {"$all": [values...]}} in the given order.
func (fo FieldOperator[R]) AllValues(values ...Value) R {
	return fo.compare(OpAll, arrayOperand(values))
}

// Exists renders {field: {"$exists": true}}.
func (fo FieldOperator[R]) Exists() R {
	return fo.compare(OpExists, Bool(true))
}

func (fo FieldOperator[R]) compare(op Op, operand Value) R {
	return fo.emit(Operator{field: fo.name, op: op, operand: operand})
}

func arrayOperand(values []Value) Value {
	if len(values) == 1 && values[0].Kind() == KindList {
		return values[0]
	}

	return List(values...)
}

// TemplateFieldOperator mirrors FieldOperator for templates: every terminal call takes a variable name
// instead of a value and produces a Placeholder. An empty variable name defaults to the field name.
type TemplateFieldOperator[R any] struct {
	name string
	emit func(Node) R
}

// TemplateField starts a free-standing Placeholder, e.g. as a child of a template combinator.
func TemplateField(name string) TemplateFieldOperator[Node] {
	return TemplateFieldOperator[Node]{name: name, emit: func(n Node) Node { return n }}
}

// Is renders {field: <variable>}.
func (fo TemplateFieldOperator[R]) Is(variable string) R {
	return fo.placeholder(opEq, variable)
}

// Eq is an alias of Is.
func (fo TemplateFieldOperator[R]) Eq(variable string) R {
	return fo.Is(variable)
}

// Ne renders {field: {"$ne": <variable>}}.
func (fo TemplateFieldOperator[R]) Ne(variable string) R {
	return fo.placeholder(OpNe, variable)
}

// Gt renders {field: {"$gt": <variable>}}.
func (fo TemplateFieldOperator[R]) Gt(variable string) R {
	return fo.placeholder(OpGt, variable)
}

// Gte renders {field: {"$gte": <variable>}}.
func (fo TemplateFieldOperator[R]) Gte(variable string) R {
	return fo.placeholder(OpGte, variable)
}

// Lt renders {field: {"$lt": <variable>}}.
func (fo TemplateFieldOperator[R]) Lt(variable string) R {
	return fo.placeholder(OpLt, variable)
}

// Lte renders {field: {"$lte": <variable>}}.
func (fo TemplateFieldOperator[R]) Lte(variable string) R {
	return fo.placeholder(OpLte, variable)
}

// InValues renders {field: {"$in": <variable>}}; the variable must be bound to a list.
func (fo TemplateFieldOperator[R]) InValues(variable string) R {
	return fo.placeholder(OpIn, variable)
}

// NinValues renders {field: {"$nin": <variable>}}; the variable must be bound to a list.
func (fo TemplateFieldOperator[R]) NinValues(variable string) R {
	return fo.placeholder(OpNin, variable)
}

// AllValues renders {field: {"$all": <variable>}}; the variable must be bound to a list.
func (fo TemplateFieldOperator[R]) AllValues(variable string) R {
	return fo.placeholder(OpAll, variable)
}

// Exists renders {<variable>: {"$exists": true}}.
//
// Binding the variable to a string replaces the field key with that string.
// Binding a number or a list leaves the key unresolved.
func (fo TemplateFieldOperator[R]) Exists(variable string) R {
	return fo.placeholder(OpExists, variable)
}

func (fo TemplateFieldOperator[R]) placeholder(op Op, variable string) R {
	if variable == "" {
		variable = fo.name
	}

	return fo.emit(Placeholder{field: fo.name, op: op, variable: variable})
}
