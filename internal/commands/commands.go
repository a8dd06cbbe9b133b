package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v2"

	"github.com/pful/pico/entitystore"
)

// outputJSON keeps placeholder sentinels readable: no HTML escaping of "<" and ">".
var outputJSON = jsoniter.Config{
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

func aliasFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     flagAlias,
		Aliases:  []string{"a"},
		Usage:    "Template alias",
		Required: true,
	}
}

func bindFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    flagBind,
		Aliases: []string{"b"},
		Usage:   "Variable binding NAME=VALUE, may be repeated",
	}
}

// TemplatesCommand lists the registered templates.
func TemplatesCommand() *cli.Command {
	return &cli.Command{
		Name:   "templates",
		Usage:  "List template aliases and their variables",
		Action: runTemplates,
	}
}

func runTemplates(c *cli.Context) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}

	registry, err := rt.standardRegistry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ALIAS\tVARIABLES")

	for _, alias := range registry.Aliases() {
		tpl, _ := registry.Lookup(alias)
		_, _ = fmt.Fprintf(w, "%s\t%s\n", alias, strings.Join(tpl.Variables(), ","))
	}

	return w.Flush()
}

// RenderCommand renders one template with bindings.
func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Render a template to its filter document",
		Description: `Unbound variables stay in the output as "<#NAME>" sentinels unless --strict is set.

Example:
  picoquery render --alias group.union --bind APP_ID=app42 --bind GROUP_1=admins --bind GROUP_2=readers`,
		Flags: []cli.Flag{
			aliasFlag(),
			bindFlag(),
			&cli.BoolFlag{
				Name:  flagStrict,
				Usage: "Fail if a variable is left unbound",
			},
		},
		Action: runRender,
	}
}

func runRender(c *cli.Context) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}

	registry, err := rt.standardRegistry()
	if err != nil {
		return err
	}

	bindings, err := ParseBindings(c.StringSlice(flagBind))
	if err != nil {
		return err
	}

	alias := c.String(flagAlias)
	binder, err := registry.OpenQuery(alias)
	if err != nil {
		return err
	}
	binder.BindAll(bindings)

	if c.Bool(flagStrict) {
		doc, err := binder.ToResolvedJSON()
		if err != nil {
			return err
		}

		return writeJSON(c, doc)
	}

	doc, err := binder.ToJSON()
	if err != nil {
		return err
	}

	if unresolved := binder.Unresolved(); len(unresolved) > 0 {
		rt.logger.Warn("rendered with unbound variables", "alias", alias, "variables", unresolved)
	}

	return writeJSON(c, doc)
}

// FindCommand runs a template against the configured engine.
func FindCommand(newEngine EngineFactory) *cli.Command {
	return &cli.Command{
		Name:  "find",
		Usage: "Find the entities matching a template",
		Description: `Every variable of the template must be bound. Entities are printed as a JSON array ordered by id.

Example:
  picoquery --config pico.yml find --alias entity.by_type --bind APP_ID=app42 --bind TYPE=user --limit 10`,
		Flags: []cli.Flag{
			aliasFlag(),
			bindFlag(),
			&cli.IntFlag{
				Name:  flagSkip,
				Usage: "Number of entities to skip",
			},
			&cli.IntFlag{
				Name:  flagLimit,
				Usage: "Maximum number of entities, 0 for all",
			},
			&cli.BoolFlag{
				Name:  flagEventual,
				Usage: "Allow reading from the replica",
			},
		},
		Action: func(c *cli.Context) error {
			return runFind(c, newEngine)
		},
	}
}

func runFind(c *cli.Context, newEngine EngineFactory) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}

	bindings, err := ParseBindings(c.StringSlice(flagBind))
	if err != nil {
		return err
	}

	ctx := c.Context
	engine, release, err := newEngine(ctx, rt.config.Database, rt.logger)
	if err != nil {
		return err
	}
	defer release()

	service, err := entitystore.NewService(engine,
		entitystore.WithTemplateRegistry(rt.registry),
		entitystore.WithLogger(rt.logger),
	)
	if err != nil {
		return err
	}

	if c.Bool(flagEventual) {
		ctx = entitystore.WithEventualConsistency(ctx)
	}

	found, err := service.Query(ctx, c.String(flagAlias), bindings, entitystore.FindOptions{
		Skip:  c.Int(flagSkip),
		Limit: c.Int(flagLimit),
	})
	if err != nil {
		return err
	}

	if found == nil {
		found = entitystore.Entities{}
	}

	return writeJSON(c, found)
}

// ImportCommand inserts entities from a JSON file.
func ImportCommand(newEngine EngineFactory) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Insert the entities of a JSON array file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagFile,
				Aliases:  []string{"f"},
				Usage:    "JSON file holding an array of entity documents",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			return runImport(c, newEngine)
		},
	}
}

func runImport(c *cli.Context, newEngine EngineFactory) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}

	entities, err := readEntities(c.String(flagFile))
	if err != nil {
		return err
	}

	engine, release, err := newEngine(c.Context, rt.config.Database, rt.logger)
	if err != nil {
		return err
	}
	defer release()

	for _, entity := range entities {
		if err := engine.Insert(c.Context, entity); err != nil {
			return fmt.Errorf("import entity %q: %w", entity.ID, err)
		}
	}

	rt.logger.Info("imported entities", "entity_count", len(entities))

	return nil
}

func readEntities(path string) (entitystore.Entities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw []jsoniter.RawMessage
	if err := outputJSON.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(entitystore.ErrDecodingEntityFailed, err)
	}

	entities := make(entitystore.Entities, 0, len(raw))
	for i, item := range raw {
		entity, err := entitystore.EntityFromJSON(item)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}

		if entity.AppID == "" || entity.ID == "" {
			return nil, errors.Join(entitystore.ErrInvalidArgument, fmt.Errorf("entity %d needs app_id and _id", i))
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

// InitSchemaCommand creates the entity table and its index.
func InitSchemaCommand(newEngine EngineFactory) *cli.Command {
	return &cli.Command{
		Name:  "init-schema",
		Usage: "Create the entity table and index if they do not exist",
		Action: func(c *cli.Context) error {
			return runInitSchema(c, newEngine)
		},
	}
}

func runInitSchema(c *cli.Context, newEngine EngineFactory) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}

	engine, release, err := newEngine(c.Context, rt.config.Database, rt.logger)
	if err != nil {
		return err
	}
	defer release()

	ensurer, ok := engine.(schemaEnsurer)
	if !ok {
		rt.logger.Info("engine has no schema", "driver", rt.config.Database.Driver)
		return nil
	}

	if err := ensurer.EnsureSchema(c.Context); err != nil {
		return err
	}

	rt.logger.Info("schema is ready", "table", rt.config.Database.Table)

	return nil
}

func writeJSON(c *cli.Context, v any) error {
	data, err := outputJSON.Marshal(v)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.App.Writer, string(data))

	return err
}
