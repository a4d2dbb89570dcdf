package corrector_test

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/logicguard/internal/catalog"
	"github.com/dshills/logicguard/internal/corrector"
	"github.com/dshills/logicguard/internal/reasoner"
	"github.com/dshills/logicguard/internal/schema"
)

// kvParser reads whitespace separated key=value tokens. Numeric values
// become numbers, everything else strings.
type kvParser struct {
	err   error
	calls int
}

func (p *kvParser) Parse(_ context.Context, text string) (*schema.Record, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	vals := schema.Values{}
	for _, tok := range strings.Fields(text) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			vals.Set(k, schema.Number(f))
		} else {
			vals.Set(k, schema.String(v))
		}
	}
	return &schema.Record{Values: vals}, nil
}

// scriptGen returns its outputs in order and then repeats the last one.
type scriptGen struct {
	mu      sync.Mutex
	outputs []string
	err     error
	prompts []string
}

func (g *scriptGen) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	i := len(g.prompts) - 1
	if i >= len(g.outputs) {
		i = len(g.outputs) - 1
	}
	return g.outputs[i], nil
}

func (g *scriptGen) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func newLoop(t *testing.T, p corrector.Parser, g corrector.Generator, opts ...corrector.Option) *corrector.Loop {
	t.Helper()
	opts = append(opts, corrector.WithLogger(zaptest.NewLogger(t)))
	return corrector.New(p, g, reasoner.New(catalog.Maintenance()), opts...)
}

const (
	badHours  = "operating_hours=95000 max_lifespan=80000"
	goodHours = "operating_hours=15000 max_lifespan=80000"
)

func TestCorrect_AlreadyConsistent(t *testing.T) {
	gen := &scriptGen{outputs: []string{"unused"}}
	res, err := newLoop(t, &kvParser{}, gen).Correct(context.Background(), goodHours)
	require.NoError(t, err)

	assert.True(t, res.Consistent)
	assert.Equal(t, schema.StopConsistent, res.Reason)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Steps)
	assert.Equal(t, goodHours, res.CorrectedText)
	assert.False(t, res.WasCorrected())
	assert.Zero(t, gen.calls())
	assert.NoError(t, res.StopErr())
}

func TestCorrect_AlreadyConsistentEncodesEmptySteps(t *testing.T) {
	res, err := newLoop(t, &kvParser{}, &scriptGen{outputs: []string{"unused"}}).Correct(context.Background(), goodHours)
	require.NoError(t, err)
	require.NotNil(t, res.Steps)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"steps":[]`)
}

func TestCorrect_FixedInOneRound(t *testing.T) {
	gen := &scriptGen{outputs: []string{goodHours}}
	res, err := newLoop(t, &kvParser{}, gen).Correct(context.Background(), badHours)
	require.NoError(t, err)

	assert.True(t, res.Consistent)
	assert.Equal(t, schema.StopConsistent, res.Reason)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, 0, res.Steps[0].Iteration)
	assert.Equal(t, badHours, res.Steps[0].InputText)
	assert.Equal(t, goodHours, res.Steps[0].OutputText)
	require.Len(t, res.Steps[0].Violations, 1)
	assert.Equal(t, "C5", res.Steps[0].Violations[0].Constraint)
	assert.Equal(t, goodHours, res.CorrectedText)
	assert.Empty(t, res.FinalViolations)
	assert.True(t, res.WasCorrected())
	require.NotNil(t, res.FinalRecord)
	assert.Equal(t, schema.Number(15000), res.FinalRecord.Values.Get("operating_hours"))
}

func TestCorrect_GeneratorEchoesInput(t *testing.T) {
	gen := &scriptGen{outputs: []string{badHours}}
	res, err := newLoop(t, &kvParser{}, gen).Correct(context.Background(), badHours)
	require.NoError(t, err)

	assert.Equal(t, schema.StopCycleDetected, res.Reason)
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.Steps, 1)
	assert.Equal(t, 1, gen.calls())
	assert.False(t, res.Consistent)
	assert.Equal(t, badHours, res.CorrectedText)
	assert.ErrorIs(t, res.StopErr(), schema.ErrCycleDetected)
}

func TestCorrect_CycleIgnoresWhitespace(t *testing.T) {
	gen := &scriptGen{outputs: []string{"  operating_hours=95000\n\tmax_lifespan=80000 "}}
	res, err := newLoop(t, &kvParser{}, gen).Correct(context.Background(), badHours)
	require.NoError(t, err)
	assert.Equal(t, schema.StopCycleDetected, res.Reason)
	assert.Equal(t, 2, res.Iterations)
}

func TestCorrect_TwoCycle(t *testing.T) {
	other := "operating_hours=90000 max_lifespan=80000"
	gen := &scriptGen{outputs: []string{other, badHours}}
	res, err := newLoop(t, &kvParser{}, gen).Correct(context.Background(), badHours)
	require.NoError(t, err)

	assert.Equal(t, schema.StopCycleDetected, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, res.Steps, 2)
	assert.Equal(t, 2, gen.calls())
	// equal violation counts: the earliest text wins
	assert.Equal(t, badHours, res.CorrectedText)
}

func TestCorrect_GeneratorRepeatsNewText(t *testing.T) {
	other := "operating_hours=90000 max_lifespan=80000"
	gen := &scriptGen{outputs: []string{other, other}}
	res, err := newLoop(t, &kvParser{}, gen).Correct(context.Background(), badHours)
	require.NoError(t, err)

	assert.Equal(t, schema.StopCycleDetected, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, 2, gen.calls())
	assert.Equal(t, badHours, res.Steps[0].InputText)
	assert.Equal(t, other, res.Steps[1].InputText)
	assert.Equal(t, other, res.Steps[1].OutputText)
	assert.False(t, res.Consistent)
}

func TestCorrect_MaxIterationsReturnsBest(t *testing.T) {
	twoViolations := func(h int) string {
		return "operating_hours=" + strconv.Itoa(h) + " max_lifespan=80000 pressure_bar=400"
	}
	oneViolation := func(h int) string {
		return "operating_hours=" + strconv.Itoa(h) + " max_lifespan=80000"
	}
	gen := &scriptGen{outputs: []string{
		twoViolations(91000),
		oneViolation(92000),
		twoViolations(93000),
		oneViolation(94000),
		oneViolation(15000), // generated on the last iteration, never evaluated
	}}
	res, err := newLoop(t, &kvParser{}, gen).Correct(context.Background(), twoViolations(90000))
	require.NoError(t, err)

	assert.Equal(t, schema.StopMaxIterations, res.Reason)
	assert.True(t, res.MaxIterationsReached)
	assert.Equal(t, corrector.DefaultMaxIterations, res.Iterations)
	assert.Len(t, res.Steps, 5)
	assert.Equal(t, 5, gen.calls())
	assert.Equal(t, oneViolation(92000), res.CorrectedText)
	assert.Len(t, res.FinalViolations, 1)
	assert.False(t, res.Consistent)
	assert.ErrorIs(t, res.StopErr(), schema.ErrMaxIterations)

	for i, s := range res.Steps {
		assert.Equal(t, i, s.Iteration)
		assert.False(t, s.Consistent)
	}
}

func TestCorrect_BestNeverWorseThanOriginal(t *testing.T) {
	gen := &scriptGen{outputs: []string{
		"operating_hours=-1 max_lifespan=0 maintenance_interval=0 pressure_bar=999",
		"operating_hours=-2 max_lifespan=0 maintenance_interval=0 pressure_bar=999",
		"operating_hours=-3 max_lifespan=0 maintenance_interval=0 pressure_bar=999",
	}}
	res, err := newLoop(t, &kvParser{}, gen, corrector.WithMaxIterations(3)).
		Correct(context.Background(), badHours)
	require.NoError(t, err)
	assert.Equal(t, badHours, res.CorrectedText)
	assert.Len(t, res.FinalViolations, 1)
	assert.Equal(t, 3, res.Iterations)
}

func TestCorrect_SingleIteration(t *testing.T) {
	gen := &scriptGen{outputs: []string{goodHours}}
	l := newLoop(t, &kvParser{}, gen).Capped(1)
	assert.Equal(t, 1, l.MaxIterations())

	res, err := l.Correct(context.Background(), badHours)
	require.NoError(t, err)
	assert.Equal(t, schema.StopMaxIterations, res.Reason)
	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Steps, 1)
	assert.Equal(t, badHours, res.CorrectedText)
}

func TestCapped_LeavesOriginalUntouched(t *testing.T) {
	l := newLoop(t, &kvParser{}, &scriptGen{outputs: []string{"x"}})
	c := l.Capped(2)
	assert.Equal(t, 2, c.MaxIterations())
	assert.Equal(t, corrector.DefaultMaxIterations, l.MaxIterations())
	assert.Same(t, l, l.Capped(0))
}

func TestCorrect_ParseFailureIsFatal(t *testing.T) {
	boom := errors.New("model returned garbage")
	gen := &scriptGen{outputs: []string{"unused"}}
	res, err := newLoop(t, &kvParser{err: boom}, gen).Correct(context.Background(), badHours)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, schema.ErrParse)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, gen.calls())
}

func TestCorrect_GenerationFailureIsFatal(t *testing.T) {
	boom := errors.New("rate limited")
	res, err := newLoop(t, &kvParser{}, &scriptGen{err: boom}).Correct(context.Background(), badHours)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, schema.ErrGeneration)
	assert.ErrorIs(t, err, boom)
}

func TestCorrect_EmptyCompletionIsGenerationFailure(t *testing.T) {
	_, err := newLoop(t, &kvParser{}, &scriptGen{outputs: []string{"  \n"}}).
		Correct(context.Background(), badHours)
	assert.ErrorIs(t, err, schema.ErrGeneration)
}

func TestCorrect_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &kvParser{}
	_, err := newLoop(t, p, &scriptGen{outputs: []string{"x"}}).Correct(ctx, badHours)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.calls)
}

func TestCorrect_Idempotent(t *testing.T) {
	gen := &scriptGen{outputs: []string{goodHours}}
	l := newLoop(t, &kvParser{}, gen)
	first, err := l.Correct(context.Background(), badHours)
	require.NoError(t, err)
	require.True(t, first.Consistent)

	second, err := l.Correct(context.Background(), first.CorrectedText)
	require.NoError(t, err)
	assert.True(t, second.Consistent)
	assert.Empty(t, second.Steps)
	assert.Equal(t, 1, gen.calls())
}

func TestCorrect_PromptsEscalate(t *testing.T) {
	gen := &scriptGen{outputs: []string{
		"operating_hours=95001 max_lifespan=80000",
		"operating_hours=95002 max_lifespan=80000",
		"operating_hours=95003 max_lifespan=80000",
	}}
	_, err := newLoop(t, &kvParser{}, gen, corrector.WithMaxIterations(3)).
		Correct(context.Background(), badHours)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 3)

	assert.Contains(t, gen.prompts[0], badHours)
	assert.Contains(t, gen.prompts[0], "RELATIONAL: operating_hours (95000) must be <= max_lifespan (80000)")
	assert.NotContains(t, gen.prompts[0], "must satisfy these constraints")

	assert.Contains(t, gen.prompts[1], "must satisfy these constraints")
	assert.Contains(t, gen.prompts[1], "- operating_hours <= max_lifespan")

	assert.Contains(t, gen.prompts[2], "Change operating_hours (currently 95002) so that it is <= 80000")
}

func TestCorrect_CustomPromptBuilder(t *testing.T) {
	gen := &scriptGen{outputs: []string{goodHours}}
	var got []int
	b := func(_ string, v []schema.Violation, i int) string {
		got = append(got, len(v))
		return "fix it"
	}
	_, err := newLoop(t, &kvParser{}, gen, corrector.WithPromptBuilder(b)).
		Correct(context.Background(), badHours)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)
	assert.Equal(t, []string{"fix it"}, gen.prompts)
}
