package backend

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed contract.yaml
var contractSpec []byte

// Contract checks backend responses against the documents API description.
type Contract struct {
	doc *openapi3.T
}

func LoadContract(ctx context.Context) (*Contract, error) {
	return ParseContract(ctx, contractSpec)
}

func ParseContract(ctx context.Context, data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load backend contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate backend contract: %w", err)
	}
	return &Contract{doc: doc}, nil
}

// ValidateResponse checks a JSON body returned for method on the path template.
// Paths or statuses the contract does not describe are accepted.
func (c *Contract) ValidateResponse(method, pathTemplate string, status int, body []byte) error {
	if c == nil || c.doc == nil || c.doc.Paths == nil {
		return nil
	}
	item := c.doc.Paths.Value(pathTemplate)
	if item == nil {
		return nil
	}
	op := item.GetOperation(method)
	if op == nil || op.Responses == nil {
		return nil
	}
	ref := op.Responses.Status(status)
	if ref == nil || ref.Value == nil {
		return nil
	}
	media := ref.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("contract %s %s: decode body: %w", method, pathTemplate, err)
	}
	if err := media.Schema.Value.VisitJSON(value); err != nil {
		return fmt.Errorf("contract %s %s: %w", method, pathTemplate, err)
	}
	return nil
}
