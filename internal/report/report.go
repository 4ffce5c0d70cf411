// Package report renders the downloadable plain-text prediction report.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/Skufu/LiverGuardian/internal/patient"
	"github.com/Skufu/LiverGuardian/internal/recommend"
)

const Disclaimer = "This report is generated by an AI model and is for informational purposes only. " +
	"It is not a substitute for professional medical advice, diagnosis, or treatment. " +
	"Always seek the advice of your physician or other qualified health provider with any questions " +
	"you may have regarding a medical condition."

const (
	rule      = "------------------------------------"
	colWidth  = 15
	dateStamp = "1/2/2006, 3:04:05 PM"
)

// Format is deterministic for a given timestamp.
func Format(r patient.Record, stage int, rec recommend.Entry, at time.Time) string {
	var b strings.Builder

	b.WriteString("\nLIVERGUARDIAN AI PREDICTION REPORT\n")
	b.WriteString("====================================\n")
	fmt.Fprintf(&b, "Report Generated: %s\n", at.Format(dateStamp))

	b.WriteString("\nPATIENT DATA\n")
	b.WriteString(rule + "\n")
	names := patient.Names()
	for i := 0; i < len(names); i += 2 {
		left := names[i]
		fmt.Fprintf(&b, "%-*s: %-*s | ", colWidth, left, colWidth, r.Value(left))
		if i+1 < len(names) {
			right := names[i+1]
			fmt.Fprintf(&b, "%-*s: %s", colWidth, right, r.Value(right))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nPREDICTION RESULT\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Predicted Cirrhosis Stage: %d\n", stage)
	fmt.Fprintf(&b, "Risk Level: %s - %s\n", rec.Risk, rec.Explanation)

	b.WriteString("\nAI RECOMMENDATIONS\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Dietary: %s\n", rec.Dietary)
	fmt.Fprintf(&b, "Lifestyle: %s\n", rec.Lifestyle)
	fmt.Fprintf(&b, "Medical: %s\n", rec.Medical)

	b.WriteString("\nDISCLAIMER\n")
	b.WriteString(rule + "\n")
	b.WriteString(Disclaimer + "\n")

	return b.String()
}

// Filename names the download after the report date.
func Filename(at time.Time) string {
	return "LiverGuardian_Report_" + at.Format("2006-01-02") + ".txt"
}
