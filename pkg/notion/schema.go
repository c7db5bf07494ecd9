package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"
)

// queryResponseSchema is the minimal shape the adapters rely on. Anything
// else in the payload is ignored.
const queryResponseSchema = `{
  "type": "object",
  "required": ["results", "has_more"],
  "properties": {
    "object": {"type": "string"},
    "has_more": {"type": "boolean"},
    "next_cursor": {"type": ["string", "null"]},
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "properties"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "properties": {"type": "object"}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func querySchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(queryResponseSchema), rs); err != nil {
			schemaErr = fmt.Errorf("compile query schema: %w", err)
			return
		}
		schema = rs
	})
	return schema, schemaErr
}

// validateQueryResponse rejects query payloads the adapters cannot read.
func validateQueryResponse(ctx context.Context, raw []byte) error {
	rs, err := querySchema()
	if err != nil {
		return err
	}
	verrs, err := rs.ValidateBytes(ctx, raw)
	if err != nil {
		return fmt.Errorf("query response validate error: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for _, v := range verrs {
			sb.WriteString(v.PropertyPath)
			sb.WriteString(": ")
			sb.WriteString(v.Message)
			sb.WriteString("; ")
		}
		return fmt.Errorf("query response does not match schema: %s", sb.String())
	}
	return nil
}
