package schema

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taskSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("title", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("status", openapi3.NewStringSchema().WithEnum("todo", "done")).
		WithProperty("limit", openapi3.NewIntegerSchema().WithMin(1))
	s.Required = []string{"title"}
	return s
}

func TestValidate_Accepts(t *testing.T) {
	err := Validate(taskSchema(), map[string]any{
		"title":  "write docs",
		"status": "todo",
		"limit":  float64(5),
	})
	assert.NoError(t, err)
}

func TestValidate_NilSchemaAcceptsAnything(t *testing.T) {
	assert.NoError(t, Validate(nil, map[string]any{"whatever": true}))
}

func TestValidate_MissingRequired(t *testing.T) {
	err := Validate(taskSchema(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestValidate_WrongTypeNamesTheKey(t *testing.T) {
	err := Validate(taskSchema(), map[string]any{"title": 7})

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.NotEmpty(t, agg.Errors)

	var ve *ValidationError
	require.ErrorAs(t, agg.Errors[0], &ve)
	assert.Equal(t, "title", ve.Key)
}

func TestValidate_AggregatesAllFailures(t *testing.T) {
	err := Validate(taskSchema(), map[string]any{
		"title":  7,
		"status": "blocked",
	})

	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	assert.GreaterOrEqual(t, len(agg.Errors), 2, "both bad arguments are reported")
}

func TestDecode(t *testing.T) {
	var out struct {
		Title string `json:"title"`
		Limit int    `json:"limit"`
	}
	err := Decode(map[string]any{"title": "x", "limit": float64(3)}, &out)
	require.NoError(t, err)
	assert.Equal(t, "x", out.Title)
	assert.Equal(t, 3, out.Limit)
}

func TestDecode_IgnoresUnknownKeys(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	err := Decode(map[string]any{"title": "x", "idempotency_key": "k"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "x", out.Title)
}
