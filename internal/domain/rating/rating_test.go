package rating

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRating(t *testing.T) {
	txID := uuid.New()

	t.Run("ValidScores", func(t *testing.T) {
		for reply, expected := range map[string]int{"1": 1, "5": 5, " 3 ": 3} {
			r, err := NewRating(txID, reply)
			require.NoError(t, err)
			assert.Equal(t, expected, r.Score)
			assert.Equal(t, txID, r.TransactionID)
			assert.NotEqual(t, uuid.Nil, r.ID)
		}
	})

	t.Run("InvalidScores", func(t *testing.T) {
		for _, reply := range []string{"0", "6", "-1", "great", "", "4.5"} {
			r, err := NewRating(txID, reply)
			assert.ErrorIs(t, err, ErrInvalidScore, "reply %q", reply)
			assert.Nil(t, r)
		}
	})
}
