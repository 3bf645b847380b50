package canonical_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CropCred/cropcred/internal/canonical"
)

func TestMarshalKeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1, "c": map[string]interface{}{"y": true, "x": nil}}
	b := map[string]interface{}{"c": map[string]interface{}{"x": nil, "y": true}, "a": 1, "b": 2}

	ca, err := canonical.Marshal(a)
	assert.NoError(t, err)
	cb, err := canonical.Marshal(b)
	assert.NoError(t, err)
	assert.Equal(t, string(ca), string(cb))
	assert.Equal(t, `{"a":1,"b":2,"c":{"x":null,"y":true}}`, string(ca))
}

func TestMarshalArraysPreserveOrder(t *testing.T) {
	in := map[string]interface{}{"list": []interface{}{3, 1, 2}}
	out, err := canonical.Marshal(in)
	assert.NoError(t, err)
	assert.Equal(t, `{"list":[3,1,2]}`, string(out))
}

func TestMarshalNumbersKeepTextualForm(t *testing.T) {
	out, err := canonical.Marshal(map[string]interface{}{"n": json.Number("123.450")})
	assert.NoError(t, err)
	assert.Equal(t, `{"n":123.450}`, string(out))
}

func TestMarshalStructsViaGenericForm(t *testing.T) {
	type inner struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	out, err := canonical.Marshal(inner{B: 7, A: "x"})
	assert.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":7}`, string(out))

	// output stays valid JSON
	var tmp interface{}
	assert.NoError(t, json.Unmarshal(out, &tmp))
}
