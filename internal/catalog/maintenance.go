package catalog

import "github.com/dshills/logicguard/internal/schema"

// Canonical property names of the maintenance domain, with the German keys
// extraction may still produce.
var (
	OperatingHours      = P("operating_hours", "betriebsstunden")
	MaxLifespan         = P("max_lifespan", "max_lebensdauer")
	MaintenanceInterval = P("maintenance_interval", "wartungsintervall")
	PressureBar         = P("pressure_bar", "druck_bar", "druck")
	TemperatureC        = P("temperature_c", "temperatur_c", "temperatur")
	RPM                 = P("rpm", "drehzahl")
	ComponentKind       = P("type", "typ")
	LastMaintenance     = P("maintenance_date", "wartungsdatum")
	NextMaintenance     = P("next_maintenance_date", "naechste_wartung")
)

// MaintenanceHierarchy is the component kind hierarchy of the maintenance
// domain, child → parent.
var MaintenanceHierarchy = map[string]string{
	"ElectricMotor":     "Motor",
	"Motor":             "RotatingComponent",
	"Pump":              "RotatingComponent",
	"HydraulicPump":     "Pump",
	"VacuumPump":        "Pump",
	"RotatingComponent": "Component",
	"Sensor":            "Component",
	"PressureSensor":    "Sensor",
	"TemperatureSensor": "Sensor",
	"Valve":             "Component",
	"Container":         "Component",
}

var lifecycleKinds = []string{"Component", "Motor", "Pump", "HydraulicPump"}

// MaintenanceConstraints returns the built-in maintenance rules in
// evaluation order.
func MaintenanceConstraints() []Constraint {
	return []Constraint{
		{
			ID:          "C1",
			Name:        "Operating hours non-negative",
			Category:    schema.CategoryRange,
			Expression:  "operating_hours >= 0",
			Description: "Operating hours must be >= 0",
			AppliesTo:   lifecycleKinds,
			Predicate:   Range(OperatingHours, Inclusive(0), nil),
		},
		{
			ID:          "C2",
			Name:        "Maximum lifespan positive",
			Category:    schema.CategoryRange,
			Expression:  "max_lifespan > 0",
			Description: "Maximum lifespan must be > 0",
			AppliesTo:   lifecycleKinds,
			Predicate:   Range(MaxLifespan, Exclusive(0), nil),
		},
		{
			ID:          "C3",
			Name:        "Maintenance interval positive",
			Category:    schema.CategoryRange,
			Expression:  "maintenance_interval > 0",
			Description: "Maintenance interval must be > 0",
			AppliesTo:   lifecycleKinds,
			Predicate:   Range(MaintenanceInterval, Exclusive(0), nil),
		},
		{
			ID:          "C4",
			Name:        "Maintenance interval <= lifespan",
			Category:    schema.CategoryRelational,
			Expression:  "maintenance_interval <= max_lifespan",
			Description: "Maintenance interval cannot exceed maximum lifespan",
			AppliesTo:   lifecycleKinds,
			Predicate:   Relational(MaintenanceInterval, OpLE, MaxLifespan),
		},
		{
			ID:          "C5",
			Name:        "Operating hours <= lifespan",
			Category:    schema.CategoryRelational,
			Expression:  "operating_hours <= max_lifespan",
			Description: "Operating hours cannot exceed maximum lifespan",
			AppliesTo:   lifecycleKinds,
			Predicate:   Relational(OperatingHours, OpLE, MaxLifespan),
		},
		{
			ID:          "C6",
			Name:        "Hydraulic pressure range",
			Category:    schema.CategoryPhysical,
			Expression:  "0 <= pressure_bar <= 350",
			Description: "Pressure must be within valid range for standard hydraulics (0-350 bar)",
			AppliesTo:   []string{"HydraulicPump", "Pump", "Component"},
			Predicate: Physical(PressureBar, "bar",
				Inclusive(0),
				Inclusive(350).As(schema.CategoryRange)),
		},
		{
			ID:          "C7",
			Name:        "Temperature range",
			Category:    schema.CategoryPhysical,
			Expression:  "-40 <= temperature_c <= 150",
			Description: "Temperature must be within valid range (-40 to 150°C)",
			AppliesTo:   []string{"Component", "Motor", "Sensor"},
			Predicate: Physical(TemperatureC, "°C",
				Inclusive(-40).As(schema.CategoryRange),
				Inclusive(150).As(schema.CategoryRange)),
		},
		{
			ID:          "C8",
			Name:        "RPM range",
			Category:    schema.CategoryPhysical,
			Expression:  "0 <= rpm <= 10000",
			Description: "RPM must be within valid range (0-10000)",
			AppliesTo:   []string{"Motor", "Pump", "RotatingComponent"},
			Predicate: Physical(RPM, "rpm",
				Inclusive(0),
				Inclusive(10000).As(schema.CategoryRange)),
		},
		{
			ID:          "C9",
			Name:        "Lifecycle values numeric",
			Category:    schema.CategoryType,
			Expression:  "typeof(operating_hours, max_lifespan, maintenance_interval, pressure_bar, temperature_c, rpm) = number",
			Description: "Extracted lifecycle and measurement values must be numbers",
			Severity:    schema.SeverityWarning,
			Predicate: TypeOf(schema.KindNumber,
				OperatingHours, MaxLifespan, MaintenanceInterval, PressureBar, TemperatureC, RPM),
		},
		{
			ID:          "C10",
			Name:        "Maintenance dates are dates",
			Category:    schema.CategoryType,
			Expression:  "typeof(maintenance_date, next_maintenance_date) = date",
			Description: "Maintenance dates must be calendar dates (YYYY-MM-DD)",
			Severity:    schema.SeverityWarning,
			Predicate:   TypeOf(schema.KindDate, LastMaintenance, NextMaintenance),
		},
		{
			ID:          "C11",
			Name:        "Maintenance date order",
			Category:    schema.CategoryTemporal,
			Expression:  "maintenance_date <= next_maintenance_date",
			Description: "The next scheduled maintenance cannot precede the last one",
			Predicate:   Relational(LastMaintenance, OpLE, NextMaintenance),
		},
	}
}

// Maintenance returns the built-in maintenance catalog.
func Maintenance() *Catalog {
	c, err := New("maintenance", MaintenanceConstraints(),
		WithHierarchy(MaintenanceHierarchy),
		WithRootKind("Component"))
	if err != nil {
		// The built-in definitions are covered by tests; failure here is a
		// programming error.
		panic(err)
	}
	return c
}
