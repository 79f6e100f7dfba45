package planning

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEvaluator answers Count expressions through `count` and records every
// Click expression it is asked to run.
type fakeEvaluator struct {
	count   func(expr string) (int, error)
	clicked []string
}

func (f *fakeEvaluator) Eval(_ context.Context, expr string, out any) error {
	if counter, ok := out.(*int); ok {
		n, err := f.count(expr)
		if err != nil {
			return err
		}
		*counter = n
		return nil
	}
	f.clicked = append(f.clicked, expr)
	return nil
}

func TestFindAndClickUsesFirstMatchingStrategy(t *testing.T) {
	ev := &fakeEvaluator{
		count: func(expr string) (int, error) {
			// only the text-ancestor strategy sees the label
			if strings.Contains(expr, "e.children.length === 0") {
				return 2, nil
			}
			return 0, nil
		},
	}

	found, err := FindAndClick(context.Background(), ev, GroupStrategies, "INFO1-A1")
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, found)
	require.Len(t, ev.clicked, 1)
	require.Contains(t, ev.clicked[0], `"INFO1-A1"`)
	require.Contains(t, ev.clicked[0], "closest")
}

func TestFindAndClickPrefersEarlierStrategies(t *testing.T) {
	ev := &fakeEvaluator{
		count: func(expr string) (int, error) {
			// every strategy matches, the first one must win
			return 1, nil
		},
	}

	found, err := FindAndClick(context.Background(), ev, GroupStrategies, "INFO1-A1")
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, found)
	require.Len(t, ev.clicked, 1)
	require.Contains(t, ev.clicked[0], "x-tree3-node-text")
}

func TestFindAndClickNoMatch(t *testing.T) {
	ev := &fakeEvaluator{
		count: func(expr string) (int, error) { return 0, nil },
	}

	found, err := FindAndClick(context.Background(), ev, ControlStrategies, "Exporter l'agenda", "Export agenda")
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, found)
	require.Empty(t, ev.clicked)
}

func TestFindAndClickFallsThroughLabels(t *testing.T) {
	ev := &fakeEvaluator{
		count: func(expr string) (int, error) {
			if strings.Contains(expr, `"Export agenda"`) {
				return 1, nil
			}
			return 0, nil
		},
	}

	found, err := FindAndClick(context.Background(), ev, ControlStrategies, "Exporter l'agenda", "Export agenda")
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, found)
	require.Contains(t, ev.clicked[0], `"Export agenda"`)
}

func TestFindAndClickPropagatesEvalErrors(t *testing.T) {
	ev := &fakeEvaluator{
		count: func(expr string) (int, error) {
			return 0, fmt.Errorf("browser went away")
		},
	}

	_, err := FindAndClick(context.Background(), ev, GroupStrategies, "INFO1-A1")
	require.ErrorContains(t, err, "browser went away")
}

func TestJsStringEscaping(t *testing.T) {
	// labels with quotes must not break out of the expression
	expr := GroupStrategies[0].Count(`l'équipe "A"`)
	require.Contains(t, expr, `"l'équipe \"A\""`)
}
