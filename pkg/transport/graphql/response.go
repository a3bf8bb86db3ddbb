package graphql

import (
	"encoding/json"
)

// Operation is a GraphQL request as the transport sees it.
// OperationIdentifier returns "" when the operation has no persisted id.
type Operation interface {
	QueryDocument() string
	Variables() map[string]interface{}
	OperationIdentifier() string
}

// Response pairs the decoded body with the operation that produced it.
// The body is passed through as received; data/errors are not interpreted here.
type Response struct {
	Operation Operation
	Body      map[string]interface{}
}

// NewResponse creates a Response envelope.
func NewResponse(op Operation, body map[string]interface{}) *Response {
	return &Response{Operation: op, Body: body}
}

// Data returns the "data" member, or nil.
func (r *Response) Data() map[string]interface{} {
	data, _ := r.Body["data"].(map[string]interface{})
	return data
}

// GraphQLError is one entry of the "errors" member.
type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Locations  []Location             `json:"locations,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Location is a line/column pair in the query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// Errors decodes the "errors" member. Entries that do not decode are
// returned with only their raw message, if any.
func (r *Response) Errors() []GraphQLError {
	raw, ok := r.Body["errors"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]GraphQLError, 0, len(raw))
	for _, entry := range raw {
		b, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		var gqlErr GraphQLError
		if err := json.Unmarshal(b, &gqlErr); err != nil {
			if m, ok := entry.(map[string]interface{}); ok {
				gqlErr = GraphQLError{}
				gqlErr.Message, _ = m["message"].(string)
			}
		}
		out = append(out, gqlErr)
	}
	return out
}

// Traverse digs into nested maps via a path of keys.
func (r *Response) Traverse(path ...string) interface{} {
	return traverse(r.Body, path...)
}

func traverse(m map[string]interface{}, path ...string) interface{} {
	cur := interface{}(m)
	for _, key := range path {
		mp, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = mp[key]
	}
	return cur
}
