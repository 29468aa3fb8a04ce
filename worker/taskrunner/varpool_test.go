// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package taskrunner

import (
	"testing"

	"github.com/shoenig/test/must"

	"github.com/cascade-workflow/cascade/worker/structs"
)

func TestParseVarPool(t *testing.T) {
	pool, err := parseVarPool("")
	must.NoError(t, err)
	must.SliceEmpty(t, pool)

	pool, err = parseVarPool(`[{"prop":"a","value":"1"},{"prop":"b","value":""}]`)
	must.NoError(t, err)
	must.Eq(t, []structs.Property{{Prop: "a", Value: "1"}, {Prop: "b"}}, pool)

	_, err = parseVarPool("{oops")
	must.Error(t, err)
}

func TestSerializeVarPool(t *testing.T) {
	out, err := serializeVarPool(nil)
	must.NoError(t, err)
	must.Eq(t, "", out)

	out, err = serializeVarPool([]structs.Property{{Prop: "a", Value: "1"}})
	must.NoError(t, err)
	must.Eq(t, `[{"prop":"a","value":"1"}]`, out)
}
