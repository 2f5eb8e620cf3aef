package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hstp/node/internal/activity"
)

func intPtr(i int) *int { return &i }

func sampleSchema() *activity.Schema {
	return &activity.Schema{
		ID:               "s1",
		ExecutorPluginID: "exec-1",
		InputSchema: activity.VariableMap{
			"name": activity.VariableDefinition{
				Name:      "name",
				DataType:  activity.DataTypeString,
				Required:  true,
				MinLength: intPtr(1),
				MaxLength: intPtr(10),
			},
			"age": activity.VariableDefinition{
				Name:     "age",
				DataType: activity.DataTypeInteger,
			},
		},
	}
}

func TestValidateSchemaRejectsMissingExecutor(t *testing.T) {
	s := &activity.Schema{ID: "s1"}
	r, err := ShaclValidator{}.ValidateSchema(context.Background(), Context{Phase: PhaseSchema}, s)
	require.NoError(t, err)
	assert.False(t, r.IsValid)
}

func TestValidateInputAcceptsWellFormedInput(t *testing.T) {
	s := sampleSchema()
	r, err := ShaclValidator{}.ValidateInput(context.Background(), Context{Phase: PhaseInput}, s, map[string]any{
		"name": "alice",
		"age":  30,
	})
	require.NoError(t, err)
	assert.True(t, r.IsValid)
}

func TestValidateInputRejectsMissingRequired(t *testing.T) {
	s := sampleSchema()
	r, err := ShaclValidator{}.ValidateInput(context.Background(), Context{Phase: PhaseInput}, s, map[string]any{
		"age": 30,
	})
	require.NoError(t, err)
	assert.False(t, r.IsValid)
	require.NotEmpty(t, r.Errors)
}

func TestValidateInputRejectsUnknownFieldUnlessAllowed(t *testing.T) {
	s := sampleSchema()
	r, err := ShaclValidator{}.ValidateInput(context.Background(), Context{Phase: PhaseInput}, s, map[string]any{
		"name":    "alice",
		"unknown": true,
	})
	require.NoError(t, err)
	assert.False(t, r.IsValid)

	r2, err := ShaclValidator{}.ValidateInput(context.Background(), Context{Phase: PhaseInput, Options: Options{AllowUnknown: true}}, s, map[string]any{
		"name":    "alice",
		"unknown": true,
	})
	require.NoError(t, err)
	assert.True(t, r2.IsValid)
}

func TestValidateInputRejectsLengthViolation(t *testing.T) {
	s := sampleSchema()
	r, err := ShaclValidator{}.ValidateInput(context.Background(), Context{Phase: PhaseInput}, s, map[string]any{
		"name": "this-name-is-way-too-long",
	})
	require.NoError(t, err)
	assert.False(t, r.IsValid)
}

func TestCompositeAllAggregatesEveryValidator(t *testing.T) {
	c := NewCompositeValidator(CompositeConfig{Strategy: StrategyAll}, ShaclValidator{})
	s := sampleSchema()
	r, err := c.ValidateInput(context.Background(), Context{Phase: PhaseInput}, s, map[string]any{"age": 30})
	require.NoError(t, err)
	assert.False(t, r.IsValid)
}

func TestCompositeFirstSuccessStopsAtFirstPass(t *testing.T) {
	c := NewCompositeValidator(CompositeConfig{Strategy: StrategyFirstSuccess}, ShaclValidator{}, ShaclValidator{})
	s := sampleSchema()
	r, err := c.ValidateInput(context.Background(), Context{Phase: PhaseInput}, s, map[string]any{"name": "alice"})
	require.NoError(t, err)
	assert.True(t, r.IsValid)
}

func TestCompositeParallelMatchesSequentialResult(t *testing.T) {
	c := NewCompositeValidator(CompositeConfig{Strategy: StrategyParallel}, ShaclValidator{})
	s := sampleSchema()
	r, err := c.ValidateInput(context.Background(), Context{Phase: PhaseInput}, s, map[string]any{"age": 30})
	require.NoError(t, err)
	assert.False(t, r.IsValid)
}

func TestCompositeNotifiesListeners(t *testing.T) {
	c := NewCompositeValidator(CompositeConfig{Strategy: StrategyAll}, ShaclValidator{})
	var notified int
	c.AddListener(func(schema *activity.Schema, vctx Context, result Result) {
		notified++
	})
	_, err := c.ValidateInput(context.Background(), Context{Phase: PhaseInput}, sampleSchema(), map[string]any{"name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, notified)
}
