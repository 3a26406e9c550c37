// Package policy runs deterministic control checks over evidence text.
// Each control requires certain phrases and flags certain trigger
// patterns; the same text always yields the same findings.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// Trigger is one pattern that, when present, raises a finding.
type Trigger struct {
	Pattern  string         `yaml:"pattern"`
	Message  string         `yaml:"message"`
	Severity model.Severity `yaml:"severity"`

	re *regexp.Regexp
}

// Control describes one policy control check.
type Control struct {
	ID              string    `yaml:"id"`
	Label           string    `yaml:"label"`
	Guidance        string    `yaml:"guidance"`
	RequiredPhrases []string  `yaml:"required_phrases"`
	Triggers        []Trigger `yaml:"triggers"`
	MissingMessage  string    `yaml:"missing_message"`
}

// Checker evaluates a catalog of controls against document text.
type Checker struct {
	controls []Control
}

// NewChecker builds a checker over the given controls, compiling the
// trigger patterns up front.
func NewChecker(controls []Control) (*Checker, error) {
	compiled := make([]Control, len(controls))
	copy(compiled, controls)
	for i := range compiled {
		for j := range compiled[i].Triggers {
			trig := &compiled[i].Triggers[j]
			re, err := regexp.Compile("(?i)" + trig.Pattern)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindInput, err,
					fmt.Sprintf("policy: compile trigger for %s", compiled[i].ID))
			}
			trig.re = re
		}
	}
	return &Checker{controls: compiled}, nil
}

// NewDefaultChecker builds a checker over the built-in control catalog.
func NewDefaultChecker() *Checker {
	c, err := NewChecker(defaultCatalog())
	if err != nil {
		panic(err) // built-in patterns are constant
	}
	return c
}

// LoadChecker reads a control catalog from a YAML file. An empty path
// yields the built-in catalog.
func LoadChecker(path string) (*Checker, error) {
	if path == "" {
		return NewDefaultChecker(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInput, err, "policy: read catalog")
	}
	var doc struct {
		Controls []Control `yaml:"controls"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindInput, err, "policy: parse catalog")
	}
	if len(doc.Controls) == 0 {
		return nil, apperr.New(apperr.KindInput, "policy: catalog has no controls")
	}
	return NewChecker(doc.Controls)
}

// ControlIDs lists the catalog's control ids in order.
func (c *Checker) ControlIDs() []string {
	ids := make([]string, len(c.controls))
	for i, ctl := range c.controls {
		ids[i] = ctl.ID
	}
	return ids
}

// Check evaluates every control against the text and returns findings in
// catalog order, numbered VIOL-001 upward.
func (c *Checker) Check(text string) []model.PolicyFinding {
	normalized := strings.ToLower(text)
	var findings []model.PolicyFinding
	next := 1

	for _, ctl := range c.controls {
		var missing []string
		for _, phrase := range ctl.RequiredPhrases {
			if !strings.Contains(normalized, strings.ToLower(phrase)) {
				missing = append(missing, strings.ToLower(phrase))
			}
		}
		if len(missing) > 0 {
			severity := model.SeverityMedium
			if len(missing) == len(ctl.RequiredPhrases) {
				severity = model.SeverityHigh
			}
			sort.Strings(missing)
			findings = append(findings, model.PolicyFinding{
				ID:           fmt.Sprintf("VIOL-%03d", next),
				Control:      ctl.ID,
				ControlLabel: ctl.Label,
				Statement:    ctl.MissingMessage,
				Excerpt:      fmt.Sprintf("Required wording absent: %s. Guidance: %s", strings.Join(missing, ", "), ctl.Guidance),
				Severity:     severity,
				Confidence:   0.68,
				Page:         1,
			})
			next++
		}

		for _, trig := range ctl.Triggers {
			loc := trig.re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			confidence := 0.74
			if trig.Severity == model.SeverityHigh {
				confidence = 0.82
			}
			snippet, page := snippetAt(text, loc[0])
			findings = append(findings, model.PolicyFinding{
				ID:           fmt.Sprintf("VIOL-%03d", next),
				Control:      ctl.ID,
				ControlLabel: ctl.Label,
				Statement:    trig.Message,
				Excerpt:      snippet,
				Severity:     trig.Severity,
				Confidence:   confidence,
				Page:         page,
			})
			next++
		}
	}
	return findings
}

// CheckDocuments concatenates the text of all documents and evaluates the
// catalog once over the combined evidence.
func (c *Checker) CheckDocuments(docs []model.DocumentRecord) []model.PolicyFinding {
	var b strings.Builder
	for _, doc := range docs {
		b.WriteString(doc.Text)
		b.WriteString("\n")
	}
	return c.Check(b.String())
}

// Summary phrases the finding set for display.
func Summary(findings []model.PolicyFinding) string {
	if len(findings) == 0 {
		return "No compliance gaps detected across evaluated controls."
	}
	highest := model.SeverityLow
	rank := map[model.Severity]int{model.SeverityLow: 1, model.SeverityMedium: 2, model.SeverityHigh: 3}
	for _, f := range findings {
		if rank[f.Severity] > rank[highest] {
			highest = f.Severity
		}
	}
	noun := "violations"
	if len(findings) == 1 {
		noun = "violation"
	}
	return fmt.Sprintf("%d potential %s detected; highest severity is %s.", len(findings), noun, highest)
}

// snippetAt returns a ~220 character window around index and the 1-based
// page number, counting form feeds as page breaks.
func snippetAt(text string, index int) (string, int) {
	const window = 220
	start := index - window/2
	if start < 0 {
		start = 0
	}
	end := index + window/2
	if end > len(text) {
		end = len(text)
	}
	page := strings.Count(text[:index], "\f") + 1
	return strings.TrimSpace(text[start:end]), page
}
