package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/solatis/texpolicy/internal/rules"
)

// Output formats for resolve and plan.
const (
	outputText = "text"
	outputJSON = "json"
)

var (
	appliedColor = color.New(color.FgGreen, color.Bold)
	skippedColor = color.New(color.FgYellow)
	noRuleColor  = color.New(color.FgHiBlack)
	labelColor   = color.New(color.FgCyan)
)

// reportPrinter writes reports as JSON lines or aligned colored text.
type reportPrinter struct {
	w      io.Writer
	format string
	enc    *json.Encoder
}

func newReportPrinter(w io.Writer, format string) (*reportPrinter, error) {
	switch format {
	case outputText:
		return &reportPrinter{w: w, format: format}, nil
	case outputJSON:
		return &reportPrinter{w: w, format: format, enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("invalid output format %q (want %s or %s)", format, outputText, outputJSON)
	}
}

func (p *reportPrinter) Print(r rules.Report) error {
	if p.format == outputJSON {
		return p.enc.Encode(r)
	}

	subject := r.AssetPath
	if subject == "" {
		subject = r.Texture
	}

	var b strings.Builder
	switch r.Outcome {
	case rules.OutcomeApplied:
		b.WriteString(appliedColor.Sprintf("%-8s", "applied"))
	case rules.OutcomeSkipped:
		b.WriteString(skippedColor.Sprintf("%-8s", "skipped"))
	default:
		b.WriteString(noRuleColor.Sprintf("%-8s", "no rule"))
	}
	fmt.Fprintf(&b, " %s [%s]", subject, r.Platform)

	switch r.Outcome {
	case rules.OutcomeApplied:
		s := r.Settings
		fmt.Fprintf(&b, " %s %s %s %d->%d %s %s %s %d npot=%s",
			labelColor.Sprint("rule"), r.Rule,
			labelColor.Sprint("size"), s.NativeSize, s.TargetSize,
			labelColor.Sprint("format"), s.TargetFormat,
			labelColor.Sprint("quality"), s.CompressionQuality, s.NPOTScale)
		if s.ForceLinear {
			b.WriteString(" linear")
		}
		if s.EnableReadWrite {
			b.WriteString(" read/write")
		}
	case rules.OutcomeSkipped:
		fmt.Fprintf(&b, " %s %s %s %q", labelColor.Sprint("rule"), r.Rule, labelColor.Sprint("pattern"), r.SkipPattern)
	}

	_, err := fmt.Fprintln(p.w, b.String())
	return err
}
