// Package codec provides the encode/decode pairs used to serialize a row's
// field map into the embedded backend's blob column.
package codec

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/inovacc/htables/internal/storage"
	"gopkg.in/yaml.v3"
)

// Codec serializes a whole field map to bytes and back.
type Codec interface {
	Name() string
	Marshal(fields map[string]string) ([]byte, error)
	Unmarshal(data []byte) (map[string]string, error)
}

// JSON is the default codec. Keys are emitted in sorted order so stored
// blobs diff cleanly. JSON strings are UTF-8, so fields holding other bytes
// are rejected rather than rewritten; YAML stores them intact.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Marshal(fields map[string]string) ([]byte, error) {
	if fields == nil {
		fields = map[string]string{}
	}

	if err := storage.CheckUTF8(fields); err != nil {
		return nil, err
	}

	return json.Marshal(fields)
}

func (JSON) Unmarshal(data []byte) (map[string]string, error) {
	fields := map[string]string{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding json row: %w", err)
	}

	if fields == nil {
		fields = map[string]string{}
	}

	return fields, nil
}

// YAML stores rows as block-style YAML mappings.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Marshal(fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return []byte("{}\n"), nil
	}

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(fields); err != nil {
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (YAML) Unmarshal(data []byte) (map[string]string, error) {
	fields := map[string]string{}
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding yaml row: %w", err)
	}

	if fields == nil {
		fields = map[string]string{}
	}

	return fields, nil
}

// ByName returns the codec registered under name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "yaml":
		return YAML{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
