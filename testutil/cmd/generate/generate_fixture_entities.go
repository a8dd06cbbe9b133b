package main

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/pful/pico/entitystore"
)

const (
	thousand = 1000

	// NumApplications - Number of applications the entities are spread over - adapt these as needed
	NumApplications = 10

	// NumEntitiesPerApplication - Number of entities created per application - adapt these as needed
	//
	// WARNING
	//
	// The file is imported entity by entity with "picoquery import", so a few hundred thousand entities take a while.
	NumEntitiesPerApplication = 10 * thousand

	OutputDir  = "testutil/fixtures" // The directory to put the fixture data into - should be fine as is.
	OutputFile = "entities.json"     // The JSON file for "picoquery import" - should be fine as is.
)

var fixtureJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var entityTypes = []string{"user", "device", "book", "order"}

var groupNames = []string{"admins", "readers", "writers", "beta", "archived", "eu", "us"}

var firstNames = []string{"ada", "bob", "cy", "dora", "emil", "fay", "gus", "hana"}

func main() {
	if err := GenerateFixtureEntities(); err != nil {
		panic(fmt.Sprintf("Error generating fixture data: %v\n", err))
	}
}

// GenerateFixtureEntities writes a JSON array of random entities into OutputDir.
func GenerateFixtureEntities() error {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	outputDir := filepath.Join(projectRoot, OutputDir)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := filepath.Join(outputDir, OutputFile)
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer func() { _ = file.Close() }() // makes no sense to handle this

	writer := bufio.NewWriter(file)
	stream := fixtureJSON.BorrowStream(writer)
	defer fixtureJSON.ReturnStream(stream)

	fakeClock := time.Unix(1_700_000_000, 0).UTC()
	count := 0

	stream.WriteArrayStart()
	for a := 0; a < NumApplications; a++ {
		appID := fmt.Sprintf("app-%03d", a)

		for i := 0; i < NumEntitiesPerApplication; i++ {
			fakeClock = fakeClock.Add(time.Second)

			entity, err := randomEntity(appID, fakeClock)
			if err != nil {
				return err
			}

			if count > 0 {
				stream.WriteMore()
			}
			stream.WriteVal(entity)
			count++
		}
	}
	stream.WriteArrayEnd()

	if stream.Error != nil {
		return fmt.Errorf("failed to encode entities: %w", stream.Error)
	}

	if err := stream.Flush(); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	fmt.Printf("Successfully generated %d entities and wrote JSON to %s\n", count, outputPath)

	return nil
}

func randomEntity(appID string, createdAt time.Time) (entitystore.Entity, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return entitystore.Entity{}, err
	}

	entityType := entityTypes[rand.IntN(len(entityTypes))]

	properties := map[string]any{
		"name":   firstNames[rand.IntN(len(firstNames))],
		"age":    rand.IntN(90) + 10,
		"score":  float64(rand.IntN(10_000)) / 100,
		"active": rand.IntN(4) != 0,
	}
	if entityType == "device" {
		properties["serial"] = fmt.Sprintf("x-%d", rand.IntN(thousand))
	}

	// Most entities are in one or two groups, some in none
	var groups []string
	for _, g := range rand.Perm(len(groupNames))[:rand.IntN(3)] {
		groups = append(groups, groupNames[g])
	}

	return entitystore.Entity{
		AppID:      appID,
		ID:         id.String(),
		Type:       entityType,
		Properties: properties,
		Groups:     groups,
		CreatedAt:  createdAt.Unix(),
		UpdatedAt:  createdAt.Unix(),
	}, nil
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("could not find project root (no go.mod found)")
}
