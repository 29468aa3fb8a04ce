// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package taskrunner

import (
	"encoding/json"

	"github.com/cascade-workflow/cascade/worker/structs"
)

// parseVarPool deserializes the variable pool carried in the context. An
// empty pool is represented as an empty string.
func parseVarPool(varPool string) ([]structs.Property, error) {
	if varPool == "" {
		return nil, nil
	}
	var properties []structs.Property
	if err := json.Unmarshal([]byte(varPool), &properties); err != nil {
		return nil, err
	}
	return properties, nil
}

// serializeVarPool serializes the plugin's output variable pool back into
// the context representation.
func serializeVarPool(properties []structs.Property) (string, error) {
	if len(properties) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(properties)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
