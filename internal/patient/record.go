package patient

import (
	"errors"
	"fmt"
	"sync"
)

// Field names double as form input names and report labels.
const (
	Status        = "Status"
	Drug          = "Drug"
	Age           = "Age"
	Sex           = "Sex"
	Ascites       = "Ascites"
	Hepatomegaly  = "Hepatomegaly"
	Spiders       = "Spiders"
	Edema         = "Edema"
	Bilirubin     = "Bilirubin"
	Cholesterol   = "Cholesterol"
	Albumin       = "Albumin"
	Copper        = "Copper"
	AlkPhos       = "Alk_Phos"
	SGOT          = "SGOT"
	Tryglicerides = "Tryglicerides"
	Platelets     = "Platelets"
	Prothrombin   = "Prothrombin"
)

var ErrUnknownField = errors.New("unknown patient field")

type Kind string

const (
	KindNumber Kind = "number"
	KindSelect Kind = "select"
)

type Option struct {
	Value string
	Label string
}

type FieldSpec struct {
	Name    string
	Label   string
	Group   string
	Kind    Kind
	Step    string
	Default string
	Options []Option
}

var (
	yesNo = []Option{{Value: "N", Label: "No"}, {Value: "Y", Label: "Yes"}}

	// fieldSpecs is in record order; reports and JSON listings follow it.
	fieldSpecs = []FieldSpec{
		{Name: Status, Label: "Status", Group: "General", Kind: KindSelect, Default: "C", Options: []Option{
			{Value: "C", Label: "Completed"}, {Value: "D", Label: "Discontinued"}, {Value: "CL", Label: "Completed Liver"},
		}},
		{Name: Drug, Label: "Drug", Group: "General", Kind: KindSelect, Default: "Placebo", Options: []Option{
			{Value: "Placebo", Label: "Placebo"}, {Value: "D-penicillamine", Label: "D-penicillamine"},
		}},
		{Name: Age, Label: "Age", Group: "General", Kind: KindNumber, Step: "1", Default: "50"},
		{Name: Sex, Label: "Sex", Group: "General", Kind: KindSelect, Default: "M", Options: []Option{
			{Value: "M", Label: "Male"}, {Value: "F", Label: "Female"},
		}},
		{Name: Ascites, Label: "Ascites", Group: "Observations", Kind: KindSelect, Default: "N", Options: yesNo},
		{Name: Hepatomegaly, Label: "Hepatomegaly", Group: "Observations", Kind: KindSelect, Default: "N", Options: yesNo},
		{Name: Spiders, Label: "Spiders", Group: "Observations", Kind: KindSelect, Default: "N", Options: yesNo},
		{Name: Edema, Label: "Edema", Group: "Observations", Kind: KindSelect, Default: "N", Options: []Option{
			{Value: "N", Label: "No"}, {Value: "S", Label: "Slight"}, {Value: "Y", Label: "Yes"},
		}},
		{Name: Bilirubin, Label: "Bilirubin", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "1.1"},
		{Name: Cholesterol, Label: "Cholesterol", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "248"},
		{Name: Albumin, Label: "Albumin", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "3.9"},
		{Name: Copper, Label: "Copper", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "55"},
		{Name: AlkPhos, Label: "Alk Phos", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "1100"},
		{Name: SGOT, Label: "SGOT", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "120"},
		{Name: Tryglicerides, Label: "Triglicerides", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "150"},
		{Name: Platelets, Label: "Platelets", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "250"},
		{Name: Prothrombin, Label: "Prothrombin", Group: "Lab Results", Kind: KindNumber, Step: "0.1", Default: "10.5"},
	}

	fieldIndex = func() map[string]int {
		idx := make(map[string]int, len(fieldSpecs))
		for i, f := range fieldSpecs {
			idx[f.Name] = i
		}
		return idx
	}()
)

// Fields returns the field descriptions in record order.
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(fieldSpecs))
	copy(out, fieldSpecs)
	return out
}

// Names returns the field names in record order.
func Names() []string {
	names := make([]string, len(fieldSpecs))
	for i, f := range fieldSpecs {
		names[i] = f.Name
	}
	return names
}

func Lookup(name string) (FieldSpec, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return FieldSpec{}, false
	}
	return fieldSpecs[i], true
}

// Record holds the raw, unvalidated value of every patient field.
// Coercion happens when the record is encoded, not here.
type Record struct {
	values [17]string
}

func Defaults() Record {
	var r Record
	for i, f := range fieldSpecs {
		r.values[i] = f.Default
	}
	return r
}

// Value returns the raw value of a field, or "" for an unknown name.
func (r Record) Value(name string) string {
	i, ok := fieldIndex[name]
	if !ok {
		return ""
	}
	return r.values[i]
}

// With returns a copy of r with one field replaced.
func (r Record) With(name, raw string) (Record, error) {
	i, ok := fieldIndex[name]
	if !ok {
		return r, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	r.values[i] = raw
	return r, nil
}

// Map returns the record as name -> raw value.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(fieldSpecs))
	for i, f := range fieldSpecs {
		out[f.Name] = r.values[i]
	}
	return out
}

// Form is the mutable form model behind one dashboard.
type Form struct {
	mu     sync.RWMutex
	record Record
}

func NewForm() *Form {
	return &Form{record: Defaults()}
}

func (f *Form) Get() Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.record
}

// Set replaces exactly one field. The only rejection is an unknown name.
func (f *Form) Set(name, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := f.record.With(name, raw)
	if err != nil {
		return err
	}
	f.record = next
	return nil
}

// SetAll applies every known field present in values. Unknown names are
// ignored so whole HTML form posts can be passed through unchanged.
func (f *Form) SetAll(values map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, raw := range values {
		if next, err := f.record.With(name, raw); err == nil {
			f.record = next
		}
	}
}
