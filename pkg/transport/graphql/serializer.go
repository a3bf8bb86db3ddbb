package graphql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Serializer converts values to and from the wire format.
type Serializer interface {
	ContentType() string
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte) (interface{}, error)
}

// JSONFormat is the default Serializer. Numbers decode as json.Number so
// large integer IDs survive the round trip.
type JSONFormat struct{}

// ContentType implements Serializer.
func (JSONFormat) ContentType() string {
	return "application/json"
}

// Serialize implements Serializer.
func (JSONFormat) Serialize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Deserialize implements Serializer. Trailing data after the first value
// is an error.
func (JSONFormat) Deserialize(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var rest json.RawMessage
	switch err := dec.Decode(&rest); err {
	case io.EOF:
	case nil:
		return nil, fmt.Errorf("trailing data after offset %d", dec.InputOffset()-int64(len(rest)))
	default:
		return nil, err
	}
	return v, nil
}
