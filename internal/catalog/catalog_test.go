package catalog_test

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/logicguard/internal/catalog"
	"github.com/dshills/logicguard/internal/schema"
)

func ids(vs []schema.Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Constraint
	}
	return out
}

func TestMaintenance_BuildsAllConstraints(t *testing.T) {
	c := catalog.Maintenance()
	assert.Equal(t, "maintenance", c.Name())
	assert.Equal(t, 11, c.Len())

	all := c.All()
	for i, want := range []string{"C1", "C2", "C3", "C4", "C5", "C6", "C7", "C8", "C9", "C10", "C11"} {
		assert.Equal(t, want, all[i].ID)
	}
}

func TestEvaluateAll_RelationalScenario(t *testing.T) {
	c := catalog.Maintenance()
	vs := c.EvaluateAll(schema.Values{
		"operating_hours": schema.Number(95000),
		"max_lifespan":    schema.Number(80000),
	})
	require.Len(t, vs, 1)
	v := vs[0]
	assert.Equal(t, "C5", v.Constraint)
	assert.Equal(t, schema.CategoryRelational, v.Category)
	assert.Equal(t, "operating_hours", v.Property)
	assert.True(t, v.Actual.Equal(schema.Number(95000)))
	assert.Equal(t, "<= 80000", v.Expected)
	assert.Equal(t, schema.SeverityError, v.Severity)
	assert.Equal(t, "operating_hours <= max_lifespan", v.Expression)
}

func TestEvaluateAll_InclusiveBoundaries(t *testing.T) {
	c := catalog.Maintenance()
	tests := []struct {
		name     string
		prop     string
		value    float64
		wantID   string
		wantCat  schema.Category
		violated bool
	}{
		{"pressure at max", "pressure_bar", 350, "", "", false},
		{"pressure past max", "pressure_bar", 351, "C6", schema.CategoryRange, true},
		{"pressure at zero", "pressure_bar", 0, "", "", false},
		{"negative pressure", "pressure_bar", -1, "C6", schema.CategoryPhysical, true},
		{"temperature at min", "temperature_c", -40, "", "", false},
		{"temperature below min", "temperature_c", -41, "C7", schema.CategoryRange, true},
		{"temperature at max", "temperature_c", 150, "", "", false},
		{"temperature above max", "temperature_c", 151, "C7", schema.CategoryRange, true},
		{"rpm at max", "rpm", 10000, "", "", false},
		{"rpm above max", "rpm", 10001, "C8", schema.CategoryRange, true},
		{"negative rpm", "rpm", -1, "C8", schema.CategoryPhysical, true},
		{"hours at zero", "operating_hours", 0, "", "", false},
		{"negative hours", "operating_hours", -1, "C1", schema.CategoryRange, true},
		{"lifespan zero is exclusive", "max_lifespan", 0, "C2", schema.CategoryRange, true},
		{"lifespan one", "max_lifespan", 1, "", "", false},
		{"interval zero is exclusive", "maintenance_interval", 0, "C3", schema.CategoryRange, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := c.EvaluateAll(schema.Values{tt.prop: schema.Number(tt.value)})
			if !tt.violated {
				assert.Empty(t, vs)
				return
			}
			require.Len(t, vs, 1)
			assert.Equal(t, tt.wantID, vs[0].Constraint)
			assert.Equal(t, tt.wantCat, vs[0].Category)
		})
	}
}

func TestEvaluateAll_PhysicalExpectedCarriesUnit(t *testing.T) {
	c := catalog.Maintenance()
	vs := c.EvaluateAll(schema.Values{"pressure_bar": schema.Number(400)})
	require.Len(t, vs, 1)
	assert.Equal(t, "<= 350 bar", vs[0].Expected)
	assert.Contains(t, vs[0].Message, "400 bar")
}

func TestEvaluateAll_AbsenceIsPass(t *testing.T) {
	c := catalog.Maintenance()
	assert.Empty(t, c.EvaluateAll(nil))
	assert.Empty(t, c.EvaluateAll(schema.Values{}))

	// Unrelated properties never trigger a constraint outside their domain.
	vs := c.EvaluateAll(schema.Values{
		"name":   schema.String("HP-01"),
		"status": schema.String("active"),
	})
	assert.Empty(t, vs)

	// Relational constraints skip when either side is missing.
	vs = c.EvaluateAll(schema.Values{"operating_hours": schema.Number(95000)})
	assert.Empty(t, vs)
}

func TestEvaluateAll_MalformedValuePolicy(t *testing.T) {
	c := catalog.Maintenance()
	vs := c.EvaluateAll(schema.Values{
		"pressure_bar": schema.String("very high"),
		"max_lifespan": schema.Number(1000),
	})
	// Range/physical checks skip the string; the type check reports it.
	require.Len(t, vs, 1)
	assert.Equal(t, "C9", vs[0].Constraint)
	assert.Equal(t, schema.CategoryType, vs[0].Category)
	assert.Equal(t, "pressure_bar", vs[0].Property)
	assert.Equal(t, "number", vs[0].Expected)
	assert.Equal(t, schema.SeverityWarning, vs[0].Severity)
}

func TestEvaluateAll_AliasesAndDefinitionOrder(t *testing.T) {
	c := catalog.Maintenance()
	values := schema.Values{
		"druck_bar":         schema.Number(500),
		"betriebsstunden":   schema.Number(-3),
		"max_lebensdauer":   schema.Number(100),
		"wartungsintervall": schema.Number(200),
	}
	first := c.EvaluateAll(values)
	assert.Equal(t, []string{"C1", "C4", "C6"}, ids(first))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.EvaluateAll(values), "evaluation must be deterministic")
	}
	assert.Equal(t, "pressure_bar", first[2].Property, "violations report the canonical name")
}

func TestEvaluateAll_TemporalOrder(t *testing.T) {
	c := catalog.Maintenance()
	day := func(s string) schema.Value {
		tm, err := time.Parse(schema.DateLayout, s)
		require.NoError(t, err)
		return schema.Date(tm)
	}
	vs := c.EvaluateAll(schema.Values{
		"maintenance_date":      day("2024-06-01"),
		"next_maintenance_date": day("2024-01-01"),
	})
	require.Len(t, vs, 1)
	assert.Equal(t, "C11", vs[0].Constraint)
	assert.Equal(t, schema.CategoryTemporal, vs[0].Category)
	assert.Equal(t, "<= 2024-01-01", vs[0].Expected)

	vs = c.EvaluateAll(schema.Values{
		"maintenance_date":      day("2024-01-01"),
		"next_maintenance_date": day("2024-01-01"),
	})
	assert.Empty(t, vs)

	vs = c.EvaluateAll(schema.Values{"maintenance_date": schema.String("last spring")})
	require.Len(t, vs, 1)
	assert.Equal(t, "C10", vs[0].Constraint)
	assert.Equal(t, schema.SeverityWarning, vs[0].Severity)
}

func TestEvaluateOne(t *testing.T) {
	c := catalog.Maintenance()
	v, err := c.EvaluateOne("C6", schema.Values{"pressure_bar": schema.Number(351)})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "C6", v.Constraint)

	v, err = c.EvaluateOne("C6", schema.Values{"pressure_bar": schema.Number(350)})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = c.EvaluateOne("C99", nil)
	assert.True(t, errors.Is(err, catalog.ErrUnknownConstraint))
}

func TestApplicable_FollowsHierarchy(t *testing.T) {
	c := catalog.Maintenance()

	assert.Equal(t, []string{"HydraulicPump", "Pump", "RotatingComponent", "Component"}, c.Lineage("HydraulicPump"))
	assert.Equal(t, []string{"Valve", "Component"}, c.Lineage("Valve"))
	assert.Equal(t, []string{"Widget", "Component"}, c.Lineage("Widget"))

	byID := func(cs []catalog.Constraint) []string {
		out := make([]string, len(cs))
		for i, con := range cs {
			out[i] = con.ID
		}
		return out
	}
	// A pump inherits the rotating-component rpm rule and every Component rule.
	assert.Equal(t,
		[]string{"C1", "C2", "C3", "C4", "C5", "C6", "C7", "C8", "C9", "C10", "C11"},
		byID(c.Applicable("HydraulicPump")))
	// A sensor is not rotating: no rpm rule.
	assert.NotContains(t, byID(c.Applicable("PressureSensor")), "C8")
}

func TestEvaluateAll_KindFilter(t *testing.T) {
	c := catalog.Maintenance()
	values := schema.Values{"rpm": schema.Number(20000)}
	assert.Len(t, c.EvaluateAll(values, "Motor"), 1)
	assert.Empty(t, c.EvaluateAll(values, "PressureSensor"))
	assert.Equal(t, c.Len(), c.Count())
	assert.Less(t, c.Count("PressureSensor"), c.Len())
}

func TestCatalog_CopiesAreIsolated(t *testing.T) {
	c := catalog.Maintenance()
	all := c.All()
	all[0].AppliesTo[0] = "Mutated"
	all[0].Predicate.Min.Value = -1000

	got, ok := c.Get("C1")
	require.True(t, ok)
	assert.Equal(t, "Component", got.AppliesTo[0])
	assert.Equal(t, float64(0), got.Predicate.Min.Value)
}

func TestNew_RejectsInvalidDefinitions(t *testing.T) {
	good := catalog.Constraint{
		ID: "X1", Name: "x", Category: schema.CategoryRange, Expression: "x >= 0",
		Predicate: catalog.Range(catalog.P("x"), catalog.Inclusive(0), nil),
	}
	tests := []struct {
		name    string
		mutate  func(c *catalog.Constraint)
		wantErr string
	}{
		{"missing id", func(c *catalog.Constraint) { c.ID = "" }, "id is required"},
		{"bad category", func(c *catalog.Constraint) { c.Category = "fuzzy" }, "unknown category"},
		{"bad severity", func(c *catalog.Constraint) { c.Severity = "fatal" }, "unknown severity"},
		{"no bounds", func(c *catalog.Constraint) { c.Predicate.Min = nil }, "at least one bound"},
		{"inverted bounds", func(c *catalog.Constraint) {
			c.Predicate.Min = catalog.Inclusive(10)
			c.Predicate.Max = catalog.Inclusive(1)
		}, "exceeds max"},
		{"bad operator", func(c *catalog.Constraint) {
			c.Predicate = catalog.Relational(catalog.P("a"), "=>", catalog.P("b"))
		}, "unknown operator"},
		{"type without kind", func(c *catalog.Constraint) {
			c.Predicate = catalog.TypeOf(schema.KindAbsent, catalog.P("a"))
		}, "expected kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			con := good
			tt.mutate(&con)
			_, err := catalog.New("t", []catalog.Constraint{con})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := catalog.New("t", []catalog.Constraint{good, good})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = catalog.New("t", []catalog.Constraint{good},
		catalog.WithHierarchy(map[string]string{"A": "B", "B": "A"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loops")
}

func TestTypePredicate_RequiredTurnsAbsenceIntoViolation(t *testing.T) {
	c, err := catalog.New("t", []catalog.Constraint{{
		ID: "R1", Name: "name required", Category: schema.CategoryType, Expression: "name: string",
		Predicate: catalog.TypeOf(schema.KindString, catalog.P("name")).MustBePresent(),
	}})
	require.NoError(t, err)

	vs := c.EvaluateAll(schema.Values{})
	require.Len(t, vs, 1)
	assert.Contains(t, vs[0].Message, "required")
	assert.Empty(t, c.EvaluateAll(schema.Values{"name": schema.String("M1")}))
}

func TestCatalog_ConcurrentReaders(t *testing.T) {
	c := catalog.Maintenance()
	values := schema.Values{"operating_hours": schema.Number(95000), "max_lifespan": schema.Number(80000)}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vs := c.EvaluateAll(values)
			if len(vs) != 1 || vs[0].Constraint != "C5" {
				errs <- strings.Join(ids(vs), ",")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("unexpected concurrent result: %s", e)
	}
}
