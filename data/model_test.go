package data_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/translation-manager/data"
)

func TestBaseModelLifecycle(t *testing.T) {
	model := &data.BaseModel{}

	require.NoError(t, model.BeforeCreate(nil))
	require.NotEmpty(t, model.GetID())
	require.True(t, model.ValidXID(model.GetID()))
	require.Equal(t, uint(1), model.GetVersion())
	require.False(t, model.CreatedAt.IsZero())

	id := model.GetID()
	require.NoError(t, model.BeforeUpdate(nil))
	require.Equal(t, uint(2), model.GetVersion())
	require.Equal(t, id, model.GetID())
	require.False(t, model.ValidXID("not-an-xid"))
}
