// racli is a demo entrypoint over the core engine: it reads a YAML
// fixture database and an RA query from the command line and prints the
// resulting relation and trace as JSON. Dataset loading lives here, not
// in the core, per spec §1's "Out of scope" boundary — the core only
// ever consumes an already-materialized relation.Environment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	raedu "github.com/ewudata/ra-edu-toolkit"
	"github.com/ewudata/ra-edu-toolkit/relation"
)

// fixtureRelation is the YAML shape of one relation in a fixture file:
// an ordered attribute list and a list of rows given positionally.
type fixtureRelation struct {
	Schema []string        `yaml:"schema"`
	Rows   [][]interface{} `yaml:"rows"`
}

type fixtureFile map[string]fixtureRelation

// loadEnvironment decodes a YAML fixture file into a relation.Environment,
// seeding base-row provenance as FromColumns requires.
func loadEnvironment(path string) (relation.Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture %s: %w", path, err)
	}
	var doc fixtureFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", path, err)
	}

	env := relation.NewEnvironment()
	for name, fr := range doc {
		rows := make([]map[string]any, len(fr.Rows))
		for i, positional := range fr.Rows {
			row := make(map[string]any, len(fr.Schema))
			for j, attr := range fr.Schema {
				if j < len(positional) {
					row[attr] = positional[j]
				}
			}
			rows[i] = row
		}
		env.Put(name, relation.FromColumns(name, fr.Schema, rows))
	}
	return env, nil
}

func main() {
	fixture := flag.String("fixture", "", "path to a YAML fixture database")
	query := flag.String("query", "", "RA expression to evaluate")
	flag.Parse()

	if *fixture == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "usage: racli -fixture db.yaml -query 'π{name}(students)'")
		os.Exit(2)
	}

	env, err := loadEnvironment(*fixture)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rel, tr, err := raedu.Run(*query, env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	out := struct {
		Schema []string         `json:"schema"`
		Rows   []map[string]any `json:"rows"`
		Trace  any              `json:"trace"`
	}{
		Schema: rel.Schema,
		Rows:   rel.Preview(len(rel.Rows)),
		Trace:  tr,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
