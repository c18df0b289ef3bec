package config

import (
	"strings"
)

// TemplateIssue is a single finding of CheckTemplates.
type TemplateIssue struct {
	Category string
	Index    int
	Template string
	Problem  string
}

// CategoryReport summarizes one template category.
type CategoryReport struct {
	Category   string
	Templates  int
	WithMarker int
}

// TemplateReport is the outcome of CheckTemplates.
type TemplateReport struct {
	Categories []CategoryReport
	Missing    []string
	Issues     []TemplateIssue
}

// OK reports whether the templates have no missing categories and no issues.
func (r TemplateReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Issues) == 0
}

// minFewShotExamples is the fewest worked examples a few-shot template
// should carry before the marker.
const minFewShotExamples = 2

// CheckTemplates verifies that every built-in category is present, that
// every template contains the marker and that few-shot templates carry at
// least two examples.
func (c *Config) CheckTemplates() TemplateReport {
	var r TemplateReport
	marker := c.Generation.Marker

	for _, cat := range CategoryOrder {
		if _, ok := c.Prompts.Templates[cat]; !ok {
			r.Missing = append(r.Missing, cat)
		}
	}

	for _, cat := range c.Categories() {
		templates := c.Prompts.Templates[cat]
		cr := CategoryReport{Category: cat, Templates: len(templates)}
		for i, t := range templates {
			if strings.Contains(t, marker) {
				cr.WithMarker++
			} else {
				r.Issues = append(r.Issues, TemplateIssue{
					Category: cat, Index: i, Template: t,
					Problem: "missing marker " + marker,
				})
				continue
			}
			if cat == CategoryFewShot && CountExamples(t, marker) < minFewShotExamples {
				r.Issues = append(r.Issues, TemplateIssue{
					Category: cat, Index: i, Template: t,
					Problem: "fewer than 2 examples before the marker",
				})
			}
		}
		r.Categories = append(r.Categories, cr)
	}
	return r
}

// CountExamples counts the non-empty period-separated sentences that
// precede the first occurrence of marker.
func CountExamples(template, marker string) int {
	head, _, _ := strings.Cut(template, marker)
	n := 0
	for _, s := range strings.Split(head, ".") {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}
