// Package features turns a patient record into the fixed-order numeric
// vector the prediction service expects.
package features

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Skufu/LiverGuardian/internal/patient"
)

// Size is the number of features the predictor was trained on.
const Size = 15

// Names lists the wire order. Do not reorder: the predictor maps columns by position.
var Names = [Size]string{
	patient.Age, patient.Sex, patient.Ascites, patient.Hepatomegaly, patient.Spiders, patient.Edema,
	patient.Bilirubin, patient.Cholesterol, patient.Albumin, patient.Copper,
	patient.AlkPhos, patient.SGOT, patient.Tryglicerides, patient.Platelets, patient.Prothrombin,
}

// Vector is one encoded record. Unparsable numeric fields are NaN.
type Vector [Size]float64

// MarshalJSON writes non-finite entries as null, which is what a browser
// serializer does with NaN.
func (v Vector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Encode never fails; bad numbers become NaN and are left for the predictor to reject.
func Encode(r patient.Record) Vector {
	return Vector{
		ParseNumber(r.Value(patient.Age)),
		flag(r.Value(patient.Sex), "M"),
		flag(r.Value(patient.Ascites), "Y"),
		flag(r.Value(patient.Hepatomegaly), "Y"),
		flag(r.Value(patient.Spiders), "Y"),
		edema(r.Value(patient.Edema)),
		ParseNumber(r.Value(patient.Bilirubin)),
		ParseNumber(r.Value(patient.Cholesterol)),
		ParseNumber(r.Value(patient.Albumin)),
		ParseNumber(r.Value(patient.Copper)),
		ParseNumber(r.Value(patient.AlkPhos)),
		ParseNumber(r.Value(patient.SGOT)),
		ParseNumber(r.Value(patient.Tryglicerides)),
		ParseNumber(r.Value(patient.Platelets)),
		ParseNumber(r.Value(patient.Prothrombin)),
	}
}

func flag(value, yes string) float64 {
	if value == yes {
		return 1
	}
	return 0
}

func edema(value string) float64 {
	switch value {
	case "Y":
		return 1
	case "S":
		return 0.5
	default:
		return 0
	}
}

var numberPrefix = regexp.MustCompile(`^[+-]?(Infinity|\d+\.?\d*(?:[eE][+-]?\d+)?|\.\d+(?:[eE][+-]?\d+)?)`)

// ParseNumber reads the longest leading decimal number in s, ignoring
// leading whitespace and trailing garbage ("12abc" is 12). It returns NaN
// when s does not start with a number.
func ParseNumber(s string) float64 {
	m := numberPrefix.FindString(strings.TrimLeft(s, " \t\n\r\v\f"))
	if m == "" {
		return math.NaN()
	}
	switch m {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	// out of range input still yields ±Inf
	f, _ := strconv.ParseFloat(m, 64)
	return f
}
