package guard

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cgast/affordkit/pkg/layout"
)

// Section titles of a rendered report.
const (
	SectionBounds      = "Mapping & bounds"
	SectionDeterminism = "Determinism"
	SectionStatus      = "Status"
)

// Observation holds the metrics extracted from one generated layout.
type Observation struct {
	Cols       int            `json:"cols"`
	Slots      int            `json:"slots"`
	Items      int            `json:"items"`
	ItemSource string         `json:"item_source"`
	Issues     []layout.Issue `json:"issues,omitempty"`
}

// CaseResult is the outcome of one scenario.
type CaseResult struct {
	Case       Case        `json:"case"`
	Observed   Observation `json:"observed"`
	Pass       bool        `json:"pass"`
	Violations []string    `json:"violations,omitempty"`
	Err        string      `json:"error,omitempty"`
}

// DeterminismResult compares two generations of the same intent and action.
type DeterminismResult struct {
	Intent layout.Intent      `json:"intent"`
	Action int                `json:"action"`
	Pass   bool               `json:"pass"`
	First  layout.Fingerprint `json:"first"`
	Second layout.Fingerprint `json:"second"`
	Err    string             `json:"error,omitempty"`
}

// Report is the outcome of a guard run.
type Report struct {
	RunID       string             `json:"run_id"`
	At          time.Time          `json:"at"`
	Pass        bool               `json:"pass"`
	Source      string             `json:"source,omitempty"`
	Cases       []CaseResult       `json:"cases"`
	Determinism *DeterminismResult `json:"determinism,omitempty"`
	Unavailable string             `json:"unavailable,omitempty"`
	Duration    time.Duration      `json:"duration"`
}

// Line is one pass/fail row of a report.
type Line struct {
	Pass bool
	Text string
}

// Section groups lines under a title.
type Section struct {
	Title string
	Lines []Line
}

// Sections groups the report rows. An unavailable generator yields a single
// Status section with one line.
func (r Report) Sections() []Section {
	if r.Unavailable != "" {
		return []Section{{Title: SectionStatus, Lines: []Line{{Text: r.Unavailable}}}}
	}

	bounds := Section{Title: SectionBounds}
	for _, c := range r.Cases {
		bounds.Lines = append(bounds.Lines, Line{Pass: c.Pass, Text: c.describe()})
	}

	det := Section{Title: SectionDeterminism}
	if r.Determinism != nil {
		det.Lines = append(det.Lines, Line{Pass: r.Determinism.Pass, Text: r.Determinism.describe()})
	}

	failed := 0
	for _, c := range r.Cases {
		if !c.Pass {
			failed++
		}
	}
	if r.Determinism == nil || !r.Determinism.Pass {
		failed++
	}
	status := fmt.Sprintf("%d cases and determinism passed", len(r.Cases))
	if !r.Pass {
		status = fmt.Sprintf("%d of %d checks failed", failed, len(r.Cases)+1)
	}

	return []Section{bounds, det, {Title: SectionStatus, Lines: []Line{{Pass: r.Pass, Text: status}}}}
}

// Lines renders the report as plain text rows.
func (r Report) Lines() []string {
	sections := r.Sections()
	if r.Unavailable != "" {
		return []string{mark(false) + " " + sections[0].Lines[0].Text}
	}
	var out []string
	for _, s := range sections {
		out = append(out, s.Title)
		for _, l := range s.Lines {
			out = append(out, "  "+mark(l.Pass)+" "+l.Text)
		}
	}
	return out
}

func mark(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	passStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	bodyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// Render writes the report with terminal styling.
func (r Report) Render(w io.Writer) error {
	var b strings.Builder
	for i, s := range r.Sections() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(titleStyle.Render(s.Title))
		b.WriteString("\n")
		for _, l := range s.Lines {
			style := failStyle
			if l.Pass {
				style = passStyle
			}
			b.WriteString(style.Render(mark(l.Pass)))
			b.WriteString(" ")
			b.WriteString(bodyStyle.Render(l.Text))
			b.WriteString("\n")
		}
	}
	_, err := fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	return err
}

func (c CaseResult) describe() string {
	if c.Err != "" {
		return fmt.Sprintf("%s: %s", c.Case.Name, c.Err)
	}
	o := c.Observed
	text := fmt.Sprintf("%s: cols=%d %s slots=%d %s %s=%d %s (%s)",
		c.Case.Name,
		o.Cols, c.Case.Bounds.Cols,
		o.Slots, c.Case.Bounds.Slots,
		c.Case.Kind, o.Items, c.Case.Bounds.Items,
		o.ItemSource)
	if len(c.Violations) > 0 {
		text += "; " + strings.Join(c.Violations, "; ")
	}
	return text
}

func (d DeterminismResult) describe() string {
	if d.Err != "" {
		return fmt.Sprintf("%s a%d: %s", d.Intent.Domain, d.Action, d.Err)
	}
	if d.Pass {
		return fmt.Sprintf("%s a%d stable: %s", d.Intent.Domain, d.Action, fingerprintText(d.First))
	}
	return fmt.Sprintf("%s a%d differs: %s vs %s", d.Intent.Domain, d.Action, fingerprintText(d.First), fingerprintText(d.Second))
}

func fingerprintText(f layout.Fingerprint) string {
	return fmt.Sprintf("type=%s cols=%d slots=%d kpi=%d article=%d product=%d",
		f.StructureType, f.Cols, f.Slots, f.KPI, f.Article, f.Product)
}
