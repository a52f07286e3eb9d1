package models

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct renders the result as a protobuf Struct with the same keys as its JSON form.
func (r DetectionResult) ToStruct() (*structpb.Struct, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return structpb.NewStruct(m)
}

func ResultFromStruct(s *structpb.Struct) (DetectionResult, error) {
	var r DetectionResult
	if s == nil {
		return r, fmt.Errorf("nil struct")
	}
	body, err := json.Marshal(s.AsMap())
	if err != nil {
		return r, fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return r, fmt.Errorf("decode result: %w", err)
	}
	return r, nil
}
