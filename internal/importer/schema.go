package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// FieldError is one structural problem in an import payload, addressed by
// JSON pointer.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type ValidationResult struct {
	IsValid bool         `json:"is_valid"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// SchemaError wraps a failed gate result so callers can both branch on the
// failure and surface the per-path details.
type SchemaError struct {
	Result ValidationResult
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("payload failed schema validation with %d error(s)", len(e.Result.Errors))
}

// payloadSchema is the structural contract every payload must meet before
// any other phase runs: the payload is an object, every known collection is
// an array of objects, and each element carries the minimum required fields
// for its entity type. Unknown top-level keys pass through untouched.
const payloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "customers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "phone": {"type": "string"},
          "email": {"type": "string"},
          "address": {"type": "string"}
        }
      }
    },
    "suppliers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "phone": {"type": "string"}
        }
      }
    },
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "category": {"type": "string"},
          "unit": {"type": "string"},
          "price_cents": {"type": "number"},
          "cost_cents": {"type": "number"},
          "stock": {"type": "number"}
        }
      }
    },
    "price_tiers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["item_name", "min_qty", "price_cents"],
        "properties": {
          "id": {"type": "string"},
          "item_name": {"type": "string", "minLength": 1},
          "min_qty": {"type": "number"},
          "price_cents": {"type": "number"}
        }
      }
    },
    "movements": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["item_name", "kind", "qty"],
        "properties": {
          "id": {"type": "string"},
          "item_name": {"type": "string", "minLength": 1},
          "kind": {"type": "string"},
          "qty": {"type": "number"},
          "note": {"type": "string"},
          "occurred_at": {"type": "string"}
        }
      }
    },
    "transactions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["total_cents"],
        "properties": {
          "id": {"type": "string"},
          "customer_name": {"type": "string"},
          "status": {"type": "string"},
          "total_cents": {"type": "number"},
          "paid_cents": {"type": "number"},
          "change_cents": {"type": "number"},
          "created_at": {"type": "string"},
          "lines": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["item_name", "qty"],
              "properties": {
                "item_name": {"type": "string", "minLength": 1},
                "qty": {"type": "number"},
                "unit_price_cents": {"type": "number"}
              }
            }
          }
        }
      }
    },
    "settings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string", "minLength": 1},
          "address": {"type": "string"},
          "phone": {"type": "string"},
          "currency": {"type": "string"},
          "tax_rate_percent": {"type": "number"}
        }
      }
    }
  }
}`

var gateSchema = compileGate()

func compileGate() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(payloadSchema))
	if err != nil {
		panic(fmt.Sprintf("importer: payload schema is not valid JSON: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("payload.json", doc); err != nil {
		panic(fmt.Sprintf("importer: adding payload schema resource: %v", err))
	}
	return compiler.MustCompile("payload.json")
}

// ValidateSchema runs the Schema Gate over a decoded payload. It never
// touches the store; on failure the caller must not proceed to any other
// phase.
func ValidateSchema(raw map[string]any) ValidationResult {
	if raw == nil {
		return ValidationResult{
			IsValid: false,
			Errors:  []FieldError{{Path: "/", Message: "payload must be an object"}},
		}
	}

	err := gateSchema.Validate(map[string]any(raw))
	if err == nil {
		return ValidationResult{IsValid: true}
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return ValidationResult{
			IsValid: false,
			Errors:  []FieldError{{Path: "/", Message: err.Error()}},
		}
	}

	fieldErrors := make([]FieldError, 0, 8)
	collectCauses(ve, &fieldErrors)
	return ValidationResult{IsValid: false, Errors: fieldErrors}
}

func collectCauses(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, FieldError{
			Path:    "/" + strings.Join(ve.InstanceLocation, "/"),
			Message: ve.Error(),
		})
		return
	}
	for _, cause := range ve.Causes {
		collectCauses(cause, out)
	}
}
