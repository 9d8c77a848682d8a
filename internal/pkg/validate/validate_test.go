package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Token string `json:"token" validate:"required"`
	Title string `json:"title" validate:"max=5"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(sample{Token: "abc", Title: "short"}))
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := Struct(sample{Title: strings.Repeat("x", 6)})
	assert.ErrorContains(t, err, "field 'token' failed 'required'")
	assert.ErrorContains(t, err, "field 'title' failed 'max'")
}
