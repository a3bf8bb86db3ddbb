package graphql

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/saturnines/nexus-gql/pkg/errors"
)

// ErrMissingOperationIdentifier is returned when identifier mode is on and
// the operation has none. It means the operation was built without
// persisted-query support and is a caller bug, not a runtime failure.
var ErrMissingOperationIdentifier = errors.WrapError(
	fmt.Errorf("operation has no identifier"),
	errors.ErrConfiguration,
	"send operation identifiers",
)

// RequestBody builds the POST body for op.
func RequestBody(op Operation, sendOperationIdentifiers bool) (map[string]interface{}, error) {
	if sendOperationIdentifiers {
		id := op.OperationIdentifier()
		if id == "" {
			return nil, ErrMissingOperationIdentifier
		}
		return map[string]interface{}{
			"id":        id,
			"variables": op.Variables(),
		}, nil
	}
	return map[string]interface{}{
		"query":     op.QueryDocument(),
		"variables": op.Variables(),
	}, nil
}

// buildRequest creates the *http.Request for op.
func (t *Transport) buildRequest(ctx context.Context, op Operation) (*http.Request, error) {
	body, err := RequestBody(op, t.sendOperationIdentifiers)
	if err != nil {
		return nil, err
	}

	buf, err := t.serializer.Serialize(body)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrSerialization, "serialize request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(buf))
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "create request")
	}
	req.Header.Set("Content-Type", t.serializer.ContentType())
	req.Header.Set("Accept", t.serializer.ContentType())
	return req, nil
}
