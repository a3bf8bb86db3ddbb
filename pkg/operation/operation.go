// Package operation builds GraphQL operations from document text.
//
// Documents are parsed with gqlparser so syntax errors surface when the
// operation is built, not as a server error after a round trip. No schema
// validation is done.
package operation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/saturnines/nexus-gql/pkg/errors"
)

// Operation is a parsed query or mutation with its variables.
type Operation struct {
	document   string
	name       string
	kind       ast.Operation
	variables  map[string]interface{}
	identifier string
}

// Option configures New.
type Option func(*options)

type options struct {
	name       string
	identifier string
	computeID  bool
}

// WithOperationName selects the named operation when the document holds several.
func WithOperationName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithIdentifier sets the persisted operation identifier.
func WithIdentifier(id string) Option {
	return func(o *options) {
		o.identifier = id
	}
}

// WithComputedIdentifier derives the identifier from the document text.
func WithComputedIdentifier() Option {
	return func(o *options) {
		o.computeID = true
	}
}

// New parses document and returns the selected operation.
func New(document string, variables map[string]interface{}, opts ...Option) (*Operation, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: document})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrValidation, "parse operation document")
	}

	def, err := selectOperation(doc, o.name)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrValidation, "select operation")
	}

	if variables == nil {
		variables = map[string]interface{}{}
	}

	op := &Operation{
		document:   document,
		name:       def.Name,
		kind:       def.Operation,
		variables:  variables,
		identifier: o.identifier,
	}
	if op.identifier == "" && o.computeID {
		op.identifier = Identifier(document)
	}
	return op, nil
}

// MustNew is New for documents known at compile time; it panics on error.
func MustNew(document string, variables map[string]interface{}, opts ...Option) *Operation {
	op, err := New(document, variables, opts...)
	if err != nil {
		panic(err)
	}
	return op
}

// Identifier returns the hex SHA-256 of document.
func Identifier(document string) string {
	sum := sha256.Sum256([]byte(document))
	return hex.EncodeToString(sum[:])
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if len(doc.Operations) == 0 {
		return nil, fmt.Errorf("document contains no operations")
	}
	if name != "" {
		def := doc.Operations.ForName(name)
		if def == nil {
			return nil, fmt.Errorf("operation %q not found in document", name)
		}
		return def, nil
	}
	if len(doc.Operations) > 1 {
		return nil, fmt.Errorf("document contains %d operations, an operation name is required", len(doc.Operations))
	}
	return doc.Operations[0], nil
}

// QueryDocument returns the document text as given to New.
func (o *Operation) QueryDocument() string {
	return o.document
}

// Variables returns the operation variables.
func (o *Operation) Variables() map[string]interface{} {
	return o.variables
}

// OperationIdentifier returns the persisted identifier, or "".
func (o *Operation) OperationIdentifier() string {
	return o.identifier
}

// Name returns the operation name; anonymous operations return "".
func (o *Operation) Name() string {
	return o.name
}

// Kind returns "query", "mutation" or "subscription".
func (o *Operation) Kind() string {
	return string(o.kind)
}

// WithVariables returns a copy of o with vars merged over its variables.
func (o *Operation) WithVariables(vars map[string]interface{}) *Operation {
	merged := make(map[string]interface{}, len(o.variables)+len(vars))
	for k, v := range o.variables {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	clone := *o
	clone.variables = merged
	return &clone
}
