package controlapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
)

const defaultPath = "graphql"

// Poster sends a JSON body and decodes the JSON reply; contxtapi.API
// satisfies it
type Poster interface {
	Post(ctx context.Context, uri string, body interface{}, out interface{}) error
}

// Operation is a named GraphQL document, checked when the package loads
type Operation struct {
	Name  string
	Type  ast.Operation
	Query string
}

// mustParse panics if the document does not hold exactly one named operation
func mustParse(query string) *Operation {
	op, err := parseOperation(query)
	if err != nil {
		panic(err)
	}
	return op
}

func parseOperation(query string) (*Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "operation", Input: query})
	if err != nil {
		return nil, errors.Wrap(err, "parsing GraphQL operation")
	}

	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("expected one operation per document, got %d", len(doc.Operations))
	}

	def := doc.Operations[0]
	if def.Name == "" {
		return nil, errors.New("GraphQL operations must be named")
	}

	return &Operation{
		Name:  def.Name,
		Type:  def.Operation,
		Query: strings.TrimSpace(query),
	}, nil
}

// GraphQLError is returned when the response carries an errors array
type GraphQLError struct {
	Operation string
	Errors    gqlerror.List
}

func (e *GraphQLError) Error() string {
	if len(e.Errors) == 0 {
		return e.Operation + ": unknown GraphQL error"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: %s", e.Operation, e.Errors[0].Message)
	}
	return fmt.Sprintf("%s: %s (and %d more errors)", e.Operation, e.Errors[0].Message, len(e.Errors)-1)
}

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors"`
}

// Client runs GraphQL operations against an endpoint
type Client struct {
	api  Poster
	path string
}

func NewClient(api Poster) *Client {
	return &Client{
		api:  api,
		path: defaultPath,
	}
}

// WithPath sets the endpoint path relative to the API base URL
func (c *Client) WithPath(path string) *Client {
	nc := *c
	nc.path = path
	return &nc
}

// Run executes op and decodes its data object into out
func (c *Client) Run(ctx context.Context, op *Operation, vars map[string]interface{}, out interface{}) error {
	logging.Logger(ctx).Debugf("running %s %s", op.Type, op.Name)

	var resp response
	req := request{
		Query:         op.Query,
		OperationName: op.Name,
		Variables:     vars,
	}
	if err := c.api.Post(ctx, c.path, req, &resp); err != nil {
		return errors.Wrapf(err, "running %s", op.Name)
	}

	if len(resp.Errors) > 0 {
		return &GraphQLError{Operation: op.Name, Errors: resp.Errors}
	}

	if out == nil || len(resp.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Data, out); err != nil {
		return errors.Wrapf(err, "decoding %s response", op.Name)
	}
	return nil
}
