// Package biomarker flags lab values outside their normal range and carries
// the static predictive factor weights shown beside a prediction.
package biomarker

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Skufu/LiverGuardian/internal/features"
	"github.com/Skufu/LiverGuardian/internal/patient"
)

//go:embed reference.yaml
var referenceYAML []byte

type Range struct {
	Name string  `yaml:"name" json:"name"`
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Contains is inclusive on both ends. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

type Factor struct {
	Name       string  `yaml:"name" json:"name"`
	Importance float64 `yaml:"importance" json:"importance"`
}

type Status struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Range  Range  `json:"range"`
	Normal bool   `json:"normal"`
}

type Reference struct {
	Ranges  []Range  `yaml:"ranges"`
	Factors []Factor `yaml:"factors"`
}

func Parse(data []byte) (*Reference, error) {
	var ref Reference
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("parse biomarker reference: %w", err)
	}
	for _, r := range ref.Ranges {
		if _, ok := patient.Lookup(r.Name); !ok {
			return nil, fmt.Errorf("range for unknown field %q", r.Name)
		}
		if r.Low > r.High {
			return nil, fmt.Errorf("range for %s is inverted", r.Name)
		}
	}
	return &ref, nil
}

var defaultReference = func() *Reference {
	ref, err := Parse(referenceYAML)
	if err != nil {
		panic(err)
	}
	return ref
}()

func Default() *Reference { return defaultReference }

// Statuses reports each tracked biomarker of r against its normal range.
func (ref *Reference) Statuses(r patient.Record) []Status {
	out := make([]Status, 0, len(ref.Ranges))
	for _, rg := range ref.Ranges {
		raw := r.Value(rg.Name)
		out = append(out, Status{
			Name:   rg.Name,
			Value:  raw,
			Range:  rg,
			Normal: rg.Contains(features.ParseNumber(raw)),
		})
	}
	return out
}

func Statuses(r patient.Record) []Status { return defaultReference.Statuses(r) }

func Factors() []Factor {
	out := make([]Factor, len(defaultReference.Factors))
	copy(out, defaultReference.Factors)
	return out
}
