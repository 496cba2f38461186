package fsm

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV(t *testing.T) {
	t.Run("NewKV initializes correctly", func(t *testing.T) {
		sm := NewKV()
		assert.NotNil(t, sm, "NewKV should not return nil")
		assert.NotNil(t, sm.kvStore, "kvStore map should be initialized")
	})

	t.Run("Apply and Get operations", func(t *testing.T) {
		sm := NewKV()

		_, err := sm.Get("key1")
		assert.ErrorIs(t, err, ErrKeyNotFound, "should return ErrKeyNotFound for non-existent key")

		result, err := sm.Apply(1, NewSetCommand("key1", "value1"))
		require.NoError(t, err)
		assert.Nil(t, result, "'set' operation should return nil result")

		val, err := sm.Get("key1")
		assert.NoError(t, err, "should not error when getting existing key")
		assert.Equal(t, "value1", val, "should get correct value for key")

		_, err = sm.Apply(2, NewSetCommand("key1", "valueUpdated"))
		require.NoError(t, err)
		val, _ = sm.Get("key1")
		assert.Equal(t, "valueUpdated", val, "should get updated value for key")

		result, err = sm.Apply(3, NewDeleteCommand("key1"))
		require.NoError(t, err)
		assert.Nil(t, result, "'delete' operation should return nil result")

		_, err = sm.Get("key1")
		assert.ErrorIs(t, err, ErrKeyNotFound, "should return ErrKeyNotFound for deleted key")
	})

	t.Run("Apply with invalid operation", func(t *testing.T) {
		sm := NewKV()
		result, err := sm.Apply(1, []byte(`{"op":"invalid-op","key":"k"}`))
		require.NoError(t, err, "unknown operation is an application result, not a failure")
		_, ok := result.(error)
		assert.True(t, ok, "should return an error value for unknown operation")
	})

	t.Run("Apply with invalid command format", func(t *testing.T) {
		sm := NewKV()
		_, err := sm.Apply(7, []byte("this is not valid json"))
		assert.Error(t, err)
	})

	t.Run("Snapshot and Restore operations", func(t *testing.T) {
		sm1 := NewKV()
		_, _ = sm1.Apply(1, NewSetCommand("name", "gopher"))
		_, _ = sm1.Apply(2, NewSetCommand("lang", "go"))

		snapshot, err := sm1.GetSnapshot()
		require.NoError(t, err, "GetSnapshot should not fail")
		assert.NotEmpty(t, snapshot)

		sm2 := NewKV()
		require.NoError(t, sm2.ApplySnapshot(snapshot))

		val, err := sm2.Get("name")
		assert.NoError(t, err)
		assert.Equal(t, "gopher", val)

		assert.True(t, reflect.DeepEqual(sm1.Dump(), sm2.Dump()), "restored store should be deeply equal to the original")

		_, _ = sm1.Apply(3, NewSetCommand("newKey", "newValue"))
		_, err = sm2.Get("newKey")
		assert.Error(t, err, "modifying original state machine should not affect the restored one")
	})

	t.Run("ApplySnapshot overwrites existing state", func(t *testing.T) {
		sm1 := NewKV()
		_, _ = sm1.Apply(1, NewSetCommand("a", "1"))
		snapshot, _ := sm1.GetSnapshot()

		sm2 := NewKV()
		_, _ = sm2.Apply(1, NewSetCommand("c", "3"))
		require.NoError(t, sm2.ApplySnapshot(snapshot))

		_, err := sm2.Get("c")
		assert.ErrorIs(t, err, ErrKeyNotFound, "'c' should not exist after applying snapshot")
		assert.Equal(t, 1, sm2.Len())
	})

	t.Run("ApplySnapshot with empty and invalid data", func(t *testing.T) {
		sm := NewKV()
		_, _ = sm.Apply(1, NewSetCommand("a", "1"))
		require.NoError(t, sm.ApplySnapshot(nil))
		assert.Equal(t, 0, sm.Len())

		assert.Error(t, sm.ApplySnapshot([]byte("{not-a-valid-json}")))
	})
}
