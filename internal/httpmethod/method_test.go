package httpmethod

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRecognizedMethods(t *testing.T) {
	assert.True(t, Parse("GET").IsGet())
	assert.True(t, Parse("POST").IsPost())
	assert.True(t, Parse("DELETE").IsDelete())
}

func TestParseUnrecognizedBecomesOther(t *testing.T) {
	m := Parse("PATCH")
	assert.Equal(t, Other, m.Kind)
	assert.False(t, m.IsGet())
	assert.False(t, m.IsPost())
	assert.False(t, m.IsDelete())
	assert.Equal(t, "PATCH", m.String())
}

func TestStringPreservesToken(t *testing.T) {
	assert.Equal(t, "GET", Parse("GET").String())
	assert.Equal(t, "get", Parse("get").String())
}
