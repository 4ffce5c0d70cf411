// Package recommend holds the static advice shown for each predicted stage.
package recommend

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed recommendations.yaml
var recommendationsYAML []byte

type Entry struct {
	Stage       int    `yaml:"stage" json:"stage"`
	Risk        string `yaml:"risk" json:"risk"`
	RiskColor   string `yaml:"risk_color" json:"riskColor"`
	Explanation string `yaml:"explanation" json:"explanation"`
	Dietary     string `yaml:"dietary" json:"dietary"`
	Lifestyle   string `yaml:"lifestyle" json:"lifestyle"`
	Medical     string `yaml:"medical" json:"medical"`
}

type Advice struct {
	Topic string
	Text  string
}

// Advice lists the advisory sections in display order.
func (e Entry) Advice() []Advice {
	return []Advice{
		{Topic: "dietary", Text: e.Dietary},
		{Topic: "lifestyle", Text: e.Lifestyle},
		{Topic: "medical", Text: e.Medical},
	}
}

type Table struct {
	entries  map[int]Entry
	fallback int
}

// Parse builds a table from YAML. The fallback stage must be present.
func Parse(data []byte) (*Table, error) {
	var doc struct {
		Fallback int     `yaml:"fallback"`
		Stages   []Entry `yaml:"stages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse recommendations: %w", err)
	}

	t := &Table{entries: make(map[int]Entry, len(doc.Stages)), fallback: doc.Fallback}
	for _, e := range doc.Stages {
		if _, dup := t.entries[e.Stage]; dup {
			return nil, fmt.Errorf("duplicate recommendation for stage %d", e.Stage)
		}
		t.entries[e.Stage] = e
	}
	if _, ok := t.entries[t.fallback]; !ok {
		return nil, fmt.Errorf("fallback stage %d has no recommendation", t.fallback)
	}
	return t, nil
}

// Lookup never fails: unknown stages get the fallback entry.
func (t *Table) Lookup(stage int) Entry {
	if e, ok := t.entries[stage]; ok {
		return e
	}
	return t.entries[t.fallback]
}

// LookupRaw resolves a stage given as text, e.g. from a query string.
func (t *Table) LookupRaw(raw string) Entry {
	stage, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return t.entries[t.fallback]
	}
	return t.Lookup(stage)
}

// Has reports whether stage has its own entry.
func (t *Table) Has(stage int) bool {
	_, ok := t.entries[stage]
	return ok
}

var defaultTable = func() *Table {
	t, err := Parse(recommendationsYAML)
	if err != nil {
		panic(err)
	}
	return t
}()

// Default returns the built-in table.
func Default() *Table { return defaultTable }

func Lookup(stage int) Entry { return defaultTable.Lookup(stage) }

func LookupRaw(raw string) Entry { return defaultTable.LookupRaw(raw) }
