package task

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Take out the trash"))
	assert.NoError(t, ValidateName("x"))
	assert.NoError(t, ValidateName(strings.Repeat("x", 50)))
	assert.NoError(t, ValidateName(strings.Repeat("洗", 50)))
	assert.ErrorIs(t, ValidateName(""), ErrNameRequired)
	assert.ErrorIs(t, ValidateName("   "), ErrNameRequired)
	assert.ErrorIs(t, ValidateName(strings.Repeat("x", 51)), ErrNameTooLong)
	assert.ErrorIs(t, ValidateName(strings.Repeat("洗", 51)), ErrNameTooLong)
}

func TestUpdateTaskInput_PatchSemantics(t *testing.T) {
	t.Run("omitted fields stay unset", func(t *testing.T) {
		var in UpdateTaskInput
		require.NoError(t, json.Unmarshal([]byte(`{"name":"Dishes"}`), &in))

		assert.True(t, in.Name.Set)
		require.NotNil(t, in.Name.Value)
		assert.Equal(t, "Dishes", *in.Name.Value)
		assert.False(t, in.Description.Set)
		assert.False(t, in.DueDate.Set)
		assert.False(t, in.AssignedTo.Set)
		assert.False(t, in.IsCompleted.Set)
	})

	t.Run("explicit null clears", func(t *testing.T) {
		var in UpdateTaskInput
		require.NoError(t, json.Unmarshal([]byte(`{"assigned_to":null,"due_date":null}`), &in))

		assert.True(t, in.AssignedTo.Set)
		assert.Nil(t, in.AssignedTo.Value)
		assert.True(t, in.DueDate.Set)
		assert.Nil(t, in.DueDate.Value)
		assert.False(t, in.Name.Set)
	})

	t.Run("typed values decode", func(t *testing.T) {
		var in UpdateTaskInput
		body := `{"is_completed":true,"due_date":"2026-09-15T10:00:00Z","assigned_to":"u2"}`
		require.NoError(t, json.Unmarshal([]byte(body), &in))

		require.NotNil(t, in.IsCompleted.Value)
		assert.True(t, *in.IsCompleted.Value)
		require.NotNil(t, in.DueDate.Value)
		assert.Equal(t, time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC), in.DueDate.Value.UTC())
		require.NotNil(t, in.AssignedTo.Value)
		assert.Equal(t, "u2", *in.AssignedTo.Value)
	})
}

func TestAssignRandom(t *testing.T) {
	taskIDs := []string{"t1", "t2", "t3"}
	members := []string{"u1", "u2"}

	t.Run("every task gets a current member", func(t *testing.T) {
		got := assignRandom(taskIDs, members, nil)
		require.Len(t, got, 3)
		for _, id := range taskIDs {
			assert.Contains(t, members, got[id])
		}
	})

	t.Run("draws are independent", func(t *testing.T) {
		// A fixed sequence of draws maps each task deterministically.
		draws := []int{1, 0, 1}
		i := 0
		intn := func(n int) int {
			d := draws[i] % n
			i++
			return d
		}

		got := assignRandom(taskIDs, members, intn)
		assert.Equal(t, "u2", got["t1"])
		assert.Equal(t, "u1", got["t2"])
		assert.Equal(t, "u2", got["t3"])
	})

	t.Run("single member receives everything", func(t *testing.T) {
		got := assignRandom(taskIDs, []string{"u9"}, nil)
		for _, id := range taskIDs {
			assert.Equal(t, "u9", got[id])
		}
	})

	t.Run("no tasks yields empty map", func(t *testing.T) {
		got := assignRandom(nil, members, nil)
		assert.Empty(t, got)
	})
}
