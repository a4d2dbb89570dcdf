package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/logicguard/internal/schema"
)

type fieldClass int

const (
	textField fieldClass = iota
	numberField
	dateField
)

type field struct {
	canonical string
	class     fieldClass
}

// componentFields maps English and German component keys to canonical names.
var componentFields = map[string]field{
	"name":                 {"name", textField},
	"type":                 {"type", textField},
	"typ":                  {"type", textField},
	"serial_number":        {"serial_number", textField},
	"seriennummer":         {"serial_number", textField},
	"status":               {"status", textField},
	"operating_hours":      {"operating_hours", numberField},
	"betriebsstunden":      {"operating_hours", numberField},
	"max_lifespan":         {"max_lifespan", numberField},
	"max_lebensdauer":      {"max_lifespan", numberField},
	"maintenance_interval": {"maintenance_interval", numberField},
	"wartungsintervall":    {"maintenance_interval", numberField},
	"pressure_bar":         {"pressure_bar", numberField},
	"druck_bar":            {"pressure_bar", numberField},
	"temperature_c":        {"temperature_c", numberField},
	"temperatur_c":         {"temperature_c", numberField},
	"rpm":                  {"rpm", numberField},
	"drehzahl":             {"rpm", numberField},
}

var maintenanceFields = map[string]field{
	"date":                  {"maintenance_date", dateField},
	"datum":                 {"maintenance_date", dateField},
	"maintenance_date":      {"maintenance_date", dateField},
	"next_date":             {"next_maintenance_date", dateField},
	"next_maintenance_date": {"next_maintenance_date", dateField},
	"naechste_wartung":      {"next_maintenance_date", dateField},
	"description":           {"description", textField},
	"beschreibung":          {"description", textField},
	"technician":            {"technician", textField},
	"techniker":             {"technician", textField},
}

// kindAliases normalises component type names, including German ones.
var kindAliases = map[string]string{
	"motor":             "Motor",
	"elektromotor":      "ElectricMotor",
	"electricmotor":     "ElectricMotor",
	"electric motor":    "ElectricMotor",
	"pumpe":             "Pump",
	"pump":              "Pump",
	"hydraulikpumpe":    "HydraulicPump",
	"hydraulik":         "HydraulicPump",
	"hydraulicpump":     "HydraulicPump",
	"hydraulic pump":    "HydraulicPump",
	"vakuumpumpe":       "VacuumPump",
	"vacuumpump":        "VacuumPump",
	"vacuum pump":       "VacuumPump",
	"ventil":            "Valve",
	"valve":             "Valve",
	"sensor":            "Sensor",
	"drucksensor":       "PressureSensor",
	"pressuresensor":    "PressureSensor",
	"pressure sensor":   "PressureSensor",
	"temperatursensor":  "TemperatureSensor",
	"temperaturesensor": "TemperatureSensor",
	"behaelter":         "Container",
	"behälter":          "Container",
	"container":         "Container",
}

// NormalizeKind maps a free-form component type to its canonical name.
// Unknown names are returned trimmed and unchanged.
func NormalizeKind(s string) string {
	s = strings.TrimSpace(s)
	if k, ok := kindAliases[strings.ToLower(s)]; ok {
		return k
	}
	return s
}

// Convert turns a decoded extraction document into a record. It accepts
// English or German section names and also a flat component object without
// a wrapping section.
func Convert(doc map[string]any) *schema.Record {
	rec := &schema.Record{Values: schema.Values{}}

	comp := section(doc, "component", "komponente")
	if comp == nil && (doc["name"] != nil || doc["operating_hours"] != nil || doc["betriebsstunden"] != nil) {
		comp = doc
	}

	// Measurements go first so explicit component fields override them.
	for _, m := range list(doc, "measurements", "messwerte") {
		meas, ok := toMeasurement(m)
		if !ok {
			continue
		}
		rec.Measurements = append(rec.Measurements, meas)
		if key := measurementKey(meas.Kind); key != "" {
			rec.Values.Set(key, schema.Number(meas.Value))
		}
	}

	if comp != nil {
		for k, raw := range comp {
			f, ok := componentFields[strings.ToLower(k)]
			if !ok {
				continue
			}
			v := toValue(raw, f.class)
			if f.canonical == "type" {
				if s, ok := v.Text(); ok {
					v = schema.String(NormalizeKind(s))
				}
			}
			if !v.IsAbsent() {
				rec.Values.Set(f.canonical, v)
			}
		}
		rec.Component = buildComponent(rec.Values)
	}

	if maint := section(doc, "maintenance", "wartung"); maint != nil {
		m := &schema.Maintenance{}
		for k, raw := range maint {
			f, ok := maintenanceFields[strings.ToLower(k)]
			if !ok {
				continue
			}
			v := toValue(raw, f.class)
			switch f.canonical {
			case "maintenance_date":
				m.Date = textOf(v)
				rec.Values.Set(f.canonical, v)
			case "next_maintenance_date":
				m.NextDate = textOf(v)
				rec.Values.Set(f.canonical, v)
			case "description":
				m.Description = textOf(v)
			case "technician":
				m.Technician = textOf(v)
			}
		}
		if *m != (schema.Maintenance{}) {
			rec.Maintenance = m
		}
	}

	rec.Confidence = 0.5
	if rec.Component != nil && rec.Component.Name != "" {
		rec.Confidence = 1.0
	}
	return rec
}

func buildComponent(vals schema.Values) *schema.Component {
	c := &schema.Component{}
	c.Name, _ = vals.Get("name").Text()
	c.Kind, _ = vals.Get("type").Text()
	c.SerialNumber, _ = vals.Get("serial_number").Text()
	c.Status, _ = vals.Get("status").Text()
	c.OperatingHours = floatPtr(vals.Get("operating_hours"))
	c.MaxLifespan = floatPtr(vals.Get("max_lifespan"))
	c.MaintenanceInterval = floatPtr(vals.Get("maintenance_interval"))
	return c
}

func floatPtr(v schema.Value) *float64 {
	if f, ok := v.Float(); ok {
		return &f
	}
	return nil
}

func textOf(v schema.Value) string {
	if v.IsAbsent() {
		return ""
	}
	return v.String()
}

func section(doc map[string]any, names ...string) map[string]any {
	for _, n := range names {
		if m, ok := doc[n].(map[string]any); ok {
			return m
		}
	}
	return nil
}

func list(doc map[string]any, names ...string) []any {
	for _, n := range names {
		if l, ok := doc[n].([]any); ok {
			return l
		}
	}
	return nil
}

func toMeasurement(raw any) (schema.Measurement, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return schema.Measurement{}, false
	}
	get := func(keys ...string) any {
		for _, k := range keys {
			if v, ok := m[k]; ok && v != nil {
				return v
			}
		}
		return nil
	}
	f, ok := toValue(get("value", "wert"), numberField).Float()
	if !ok {
		return schema.Measurement{}, false
	}
	return schema.Measurement{
		Kind:  textOf(toValue(get("type", "typ"), textField)),
		Value: f,
		Unit:  textOf(toValue(get("unit", "einheit"), textField)),
	}, true
}

// measurementKey maps a measurement kind to the value it feeds.
func measurementKey(kind string) string {
	k := strings.ToLower(kind)
	switch {
	case strings.Contains(k, "druck"), strings.Contains(k, "pressure"):
		return "pressure_bar"
	case strings.Contains(k, "temp"):
		return "temperature_c"
	case strings.Contains(k, "drehzahl"), strings.Contains(k, "rpm"), strings.Contains(k, "speed"):
		return "rpm"
	}
	return ""
}

// toValue converts a decoded JSON scalar for a field of the given class.
// Strings that do not fit the class stay strings so type constraints can
// report them.
func toValue(raw any, class fieldClass) schema.Value {
	switch v := raw.(type) {
	case nil:
		return schema.Absent()
	case float64:
		if class == textField {
			return schema.String(schema.FormatNumber(v))
		}
		return schema.Number(v)
	case bool:
		return schema.String(strconv.FormatBool(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "null") {
			return schema.Absent()
		}
		switch class {
		case numberField:
			if f, ok := ParseNumber(s); ok {
				return schema.Number(f)
			}
		case dateField:
			if t, ok := ParseDate(s); ok {
				return schema.Date(t)
			}
		}
		return schema.String(s)
	}
	return schema.Absent()
}

var (
	groupedRe = regexp.MustCompile(`^[-+]?\d{1,3}(?:([.,' ])\d{3})+$`)
	numberRe  = regexp.MustCompile(`^([-+]?[\d.,' ]*\d)\s*(?:[a-zA-Z°%/]+\.?)?$`)
)

// ParseNumber reads a number that may carry thousands separators
// ("15.000", "15,000", "15 000"), a decimal comma ("85,5") or a trailing
// unit ("350 bar").
func ParseNumber(s string) (float64, bool) {
	m := numberRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	num := m[1]
	switch {
	case groupedRe.MatchString(num):
		sep := groupedRe.FindStringSubmatch(num)[1]
		num = strings.ReplaceAll(num, sep, "")
	case strings.Contains(num, ",") && !strings.Contains(num, "."):
		num = strings.Replace(num, ",", ".", 1)
	case strings.Contains(num, ",") && strings.Contains(num, "."):
		// "1.234,5" or "1,234.5": the later separator is the decimal point.
		if strings.LastIndex(num, ",") > strings.LastIndex(num, ".") {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	}
	num = strings.NewReplacer(" ", "", "'", "").Replace(num)
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{schema.DateLayout, "02.01.2006", "2.1.2006", time.RFC3339, "2006/01/02"}

// ParseDate reads a calendar date in ISO or German notation.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
