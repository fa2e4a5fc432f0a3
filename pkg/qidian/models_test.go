package qidian

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentSetKeepsFirstPosition(t *testing.T) {
	c := NewComment()
	c.Set("b", "1")
	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, []string{"b", "a"}, c.Keys())
	v, _ := c.Get("b")
	assert.Equal(t, "3", v)
	assert.Equal(t, 2, c.Len())

	keys := c.Keys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"b", "a"}, c.Keys())
}

func TestCommentJSONOrder(t *testing.T) {
	var c Comment
	require.NoError(t, json.Unmarshal([]byte(`{"z":1.50,"y":"s","x":{"k": [1, 2]}}`), &c))
	assert.Equal(t, []string{"z", "y", "x"}, c.Keys())

	v, _ := c.Get("z")
	assert.Equal(t, "1.50", v, "numbers keep their literal text")
	v, _ = c.Get("x")
	assert.Equal(t, `{"k":[1,2]}`, v)

	out, err := json.Marshal(&c)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"1.50","y":"s","x":"{\"k\":[1,2]}"}`, string(out))
}

func TestCommentRejectsNonObject(t *testing.T) {
	var c Comment
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &c))
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":123456789012,"b":"x","c":null}`), &v))
	assert.Equal(t, FlexString("123456789012"), v.A)
	assert.Equal(t, FlexString("x"), v.B)
	assert.Equal(t, FlexString(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}
