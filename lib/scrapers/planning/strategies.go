package planning

import (
	"context"
	"fmt"
	"strconv"
)

// Evaluator runs a javascript expression in the live page and unmarshals its
// result into out. The production implementation is backed by chromedp; tests
// substitute a fake.
type Evaluator interface {
	Eval(ctx context.Context, expr string, out any) error
}

// Strategy is one independent way of locating a clickable element for a
// label. Count returns a javascript expression evaluating to the number of
// matches, Click one that clicks the first match.
//
// Robustness against upstream markup drift comes from evaluating an ordered
// list of these until one yields at least one match, instead of nesting
// conditionals inside the scrape sequence.
type Strategy struct {
	Name  string
	Count func(label string) string
	Click func(label string) string
}

// GroupStrategies locate the tile of a timetable group in the planning tree.
var GroupStrategies = []Strategy{
	{
		// the planning tree renders each selectable node as a dedicated
		// text span
		Name: "tree-node-text",
		Count: func(label string) string {
			return fmt.Sprintf(
				`Array.from(document.querySelectorAll('span.x-tree3-node-text')).filter(e => e.textContent.trim() === %s).length`,
				jsString(label),
			)
		},
		Click: func(label string) string {
			return fmt.Sprintf(
				`Array.from(document.querySelectorAll('span.x-tree3-node-text')).filter(e => e.textContent.trim() === %s)[0].click()`,
				jsString(label),
			)
		},
	},
	{
		// fall back to any element with the exact text, clicking its
		// nearest clickable ancestor
		Name: "text-ancestor",
		Count: func(label string) string {
			return fmt.Sprintf(
				`Array.from(document.querySelectorAll('div,span,td')).filter(e => e.children.length === 0 && e.textContent.trim() === %s).length`,
				jsString(label),
			)
		},
		Click: func(label string) string {
			return fmt.Sprintf(
				`(() => {
					const el = Array.from(document.querySelectorAll('div,span,td')).filter(e => e.children.length === 0 && e.textContent.trim() === %s)[0];
					(el.closest('[role=treeitem],[role=button],a,button') || el).click();
				})()`,
				jsString(label),
			)
		},
	},
	{
		Name: "aria-label",
		Count: func(label string) string {
			return fmt.Sprintf(
				`document.querySelectorAll('[aria-label=' + CSS.escape(%s) + '], [title=' + CSS.escape(%s) + ']').length`,
				jsString(label), jsString(label),
			)
		},
		Click: func(label string) string {
			return fmt.Sprintf(
				`document.querySelectorAll('[aria-label=' + CSS.escape(%s) + '], [title=' + CSS.escape(%s) + ']')[0].click()`,
				jsString(label), jsString(label),
			)
		},
	},
}

// ControlStrategies locate toolbar controls (export, generate URL) by their
// visible caption, with an attribute fallback for icon-only variants.
var ControlStrategies = []Strategy{
	{
		Name: "button-caption",
		Count: func(label string) string {
			return fmt.Sprintf(
				`Array.from(document.querySelectorAll('button,.x-btn,[role=button]')).filter(e => e.textContent.trim().toLowerCase().includes(%s.toLowerCase())).length`,
				jsString(label),
			)
		},
		Click: func(label string) string {
			return fmt.Sprintf(
				`Array.from(document.querySelectorAll('button,.x-btn,[role=button]')).filter(e => e.textContent.trim().toLowerCase().includes(%s.toLowerCase()))[0].click()`,
				jsString(label),
			)
		},
	},
	{
		Name: "menu-item-text",
		Count: func(label string) string {
			return fmt.Sprintf(
				`Array.from(document.querySelectorAll('.x-menu-item,.x-menu-item-text,li')).filter(e => e.textContent.trim().toLowerCase().includes(%s.toLowerCase())).length`,
				jsString(label),
			)
		},
		Click: func(label string) string {
			return fmt.Sprintf(
				`Array.from(document.querySelectorAll('.x-menu-item,.x-menu-item-text,li')).filter(e => e.textContent.trim().toLowerCase().includes(%s.toLowerCase()))[0].click()`,
				jsString(label),
			)
		},
	},
	{
		Name: "aria-label",
		Count: func(label string) string {
			return fmt.Sprintf(
				`document.querySelectorAll('[aria-label=' + CSS.escape(%s) + ']').length`,
				jsString(label),
			)
		},
		Click: func(label string) string {
			return fmt.Sprintf(
				`document.querySelectorAll('[aria-label=' + CSS.escape(%s) + ']')[0].click()`,
				jsString(label),
			)
		},
	},
}

// FindAndClick evaluates the strategies in order against each candidate
// label and clicks the first match. It reports whether anything was clicked.
func FindAndClick(ctx context.Context, ev Evaluator, strategies []Strategy, labels ...string) (bool, error) {
	for _, label := range labels {
		for _, strat := range strategies {
			var count int
			err := ev.Eval(ctx, strat.Count(label), &count)
			if err != nil {
				return false, fmt.Errorf("strategy %s: %w", strat.Name, err)
			}
			if count == 0 {
				continue
			}
			err = ev.Eval(ctx, strat.Click(label), nil)
			if err != nil {
				return false, fmt.Errorf("strategy %s: %w", strat.Name, err)
			}
			return true, nil
		}
	}
	return false, nil
}

// jsString embeds a Go string into a javascript expression. strconv.Quote
// escaping is a valid javascript string literal.
func jsString(s string) string {
	return strconv.Quote(s)
}
