// Package parser extracts structured maintenance records from free text by
// asking an LLM for schema-guided JSON and normalising the answer into the
// flat value map the reasoner consumes.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/logicguard/internal/llm"
	"github.com/dshills/logicguard/internal/schema"
)

// ErrEmptyText is returned for blank input.
var ErrEmptyText = errors.New("parser: empty text")

// SystemPrompt instructs the model to answer with JSON only.
const SystemPrompt = `You are a precise data extraction assistant for technical maintenance documents.
Your task is to extract structured information from technical texts.
ALWAYS respond ONLY with valid JSON. No explanations, no comments.
If a value is not present in the text, use null.
Numbers with thousands separators (e.g., 15,000 or 15.000) must be extracted as numbers without separators (15000).`

// DefaultSchema describes the JSON shape requested from the model.
const DefaultSchema = `{
  "component": {
    "name": "string - component identifier (e.g. 'M1', 'HP-01')",
    "type": "string - component type (Motor, ElectricMotor, Pump, HydraulicPump, VacuumPump, Valve, Sensor, PressureSensor, TemperatureSensor, Container)",
    "serial_number": "string or null",
    "operating_hours": "number or null - operating hours",
    "max_lifespan": "number or null - maximum lifespan in hours",
    "maintenance_interval": "number or null - maintenance interval in hours",
    "pressure_bar": "number or null - pressure in bar",
    "temperature_c": "number or null - temperature in degrees Celsius",
    "rpm": "number or null - rotational speed",
    "status": "string or null - status (active, defective, maintenance)"
  },
  "maintenance": {
    "date": "string or null - last maintenance, YYYY-MM-DD",
    "next_date": "string or null - next scheduled maintenance, YYYY-MM-DD",
    "description": "string or null",
    "technician": "string or null"
  },
  "measurements": [
    {"type": "string - kind of measurement", "value": "number", "unit": "string"}
  ]
}`

const defaultTemperature = 0.0

// LLMParser implements text-to-record extraction on top of an llm.Provider.
type LLMParser struct {
	provider     llm.Provider
	schema       string
	systemPrompt string
	temperature  float64
	maxTokens    int
	logger       *zap.Logger
}

// Option configures an LLMParser.
type Option func(*LLMParser)

// WithSchema replaces the extraction schema shown to the model.
func WithSchema(s string) Option {
	return func(p *LLMParser) {
		if s != "" {
			p.schema = s
		}
	}
}

// WithSystemPrompt replaces the extraction system prompt.
func WithSystemPrompt(s string) Option {
	return func(p *LLMParser) {
		if s != "" {
			p.systemPrompt = s
		}
	}
}

// WithTemperature sets the sampling temperature for extraction calls.
func WithTemperature(t float64) Option {
	return func(p *LLMParser) { p.temperature = t }
}

// WithMaxTokens caps the extraction response length.
func WithMaxTokens(n int) Option {
	return func(p *LLMParser) { p.maxTokens = n }
}

// WithLogger sets the parser's logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *LLMParser) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a parser that extracts through provider.
func New(provider llm.Provider, opts ...Option) *LLMParser {
	p := &LLMParser{
		provider:     provider,
		schema:       DefaultSchema,
		systemPrompt: SystemPrompt,
		temperature:  defaultTemperature,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("parser")
	return p
}

// Parse extracts a record from text. Every failure wraps schema.ErrParse.
func (p *LLMParser) Parse(ctx context.Context, text string) (*schema.Record, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", schema.ErrParse, ErrEmptyText)
	}
	raw, err := p.provider.Complete(ctx, p.systemPrompt, buildPrompt(p.schema, text), p.maxTokens, p.temperature)
	if err != nil {
		return nil, fmt.Errorf("parser: extract: %w: %w", schema.ErrParse, err)
	}
	p.logger.Debug("extraction response", zap.Int("len", len(raw)))

	var doc map[string]any
	if err := llm.DecodeJSON(raw, &doc); err != nil {
		return nil, fmt.Errorf("parser: decode: %w: %w", schema.ErrParse, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parser: decode: %w: %w", schema.ErrParse,
			llm.ValidationError{Field: "json_parse", Message: "response is not a JSON object"})
	}
	rec := Convert(doc)
	p.logger.Debug("record extracted",
		zap.Int("values", len(rec.Values)),
		zap.Int("measurements", len(rec.Measurements)),
		zap.Float64("confidence", rec.Confidence))
	return rec, nil
}

func buildPrompt(schemaText, text string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following technical text and extract structured information according to the schema.\n\n")
	sb.WriteString("SCHEMA:\n")
	sb.WriteString(schemaText)
	sb.WriteString("\n\nTEXT:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nIMPORTANT:\n")
	sb.WriteString("- Respond ONLY with valid JSON\n")
	sb.WriteString("- Extract ALL information present in the text\n")
	sb.WriteString("- Numbers with thousands separators (e.g. 15,000 or 15.000) are extracted without separators (15000)\n")
	sb.WriteString("- For missing information use null\n")
	sb.WriteString("- Dates use the format YYYY-MM-DD\n")
	sb.WriteString("\nJSON:")
	return sb.String()
}
