package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-console/internal/model"
)

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	t.Run("accepts letters digits and spaces", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, ValidateStruct(model.AddAssetRequest{Name: "Pump 12"}))
	})

	t.Run("reports each failing field by json name", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(model.SignalRequest{Name: "temp/1", ValueType: "bool"})
		require.ErrorIs(t, err, model.ErrInvalidInput)

		var inputErr *model.InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, []model.FieldError{
			{Field: "name", Rule: "may only contain letters, digits and spaces"},
			{Field: "valueType", Rule: "must be one of: string real"},
		}, inputErr.Fields)
	})

	t.Run("limits names to thirty characters", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(model.AddAssetRequest{Name: strings.Repeat("a", 31)})
		var inputErr *model.InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, "must be at most 30 characters", inputErr.Fields[0].Rule)
	})

	t.Run("requires a name", func(t *testing.T) {
		t.Parallel()

		err := ValidateStruct(model.RenameNodeRequest{ID: "1"})
		var inputErr *model.InputError
		require.ErrorAs(t, err, &inputErr)
		assert.Equal(t, model.FieldError{Field: "name", Rule: "is required"}, inputErr.Fields[0])
	})
}

func TestIsAssetName(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAssetName("Line 3"))
	assert.False(t, IsAssetName(""))
	assert.False(t, IsAssetName("Ventil-2"))
	assert.False(t, IsAssetName(strings.Repeat("x", 31)))
}
