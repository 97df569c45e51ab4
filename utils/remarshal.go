package utils

import (
	jsonv2 "github.com/go-json-experiment/json"
)

// Remarshal copies input into output through its JSON form.
func Remarshal(input any, output any) error {
	b, err := jsonv2.Marshal(input, jsonv2.Deterministic(true))
	if err != nil {
		return err
	}
	return jsonv2.Unmarshal(b, output)
}
