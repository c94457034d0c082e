package cache

import (
	"encoding/json"
	"fmt"
)

// Codec converts cache values to and from their stored form.
type Codec[V any] interface {
	Encode(value V) (string, error)
	Decode(data string) (V, error)
}

// JSONCodec stores values as JSON documents.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(value V) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(data), nil
}

func (JSONCodec[V]) Decode(data string) (V, error) {
	var v V
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("decode value: %w", err)
	}
	return v, nil
}

// StringCodec stores strings verbatim.
type StringCodec struct{}

func (StringCodec) Encode(value string) (string, error) { return value, nil }

func (StringCodec) Decode(data string) (string, error) { return data, nil }
