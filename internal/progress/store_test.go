package progress

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexsupply/cli/pkg/indexsupply"
)

func TestKeyID(t *testing.T) {
	a := Key{Chain: 8453, Query: "select 1", EventSignatures: []string{"Transfer(address from)"}}
	b := Key{Chain: 8453, Query: "  select 1\n", EventSignatures: []string{"Transfer(address from)"}}
	c := Key{Chain: 84532, Query: "select 1", EventSignatures: []string{"Transfer(address from)"}}
	d := Key{Chain: 8453, Query: "select 1"}

	assert.Len(t, a.ID(), 32)
	assert.Equal(t, a.ID(), b.ID())
	assert.NotEqual(t, a.ID(), c.ID())
	assert.NotEqual(t, a.ID(), d.ID())
}

func TestCopyRows(t *testing.T) {
	rows := []indexsupply.Row{
		{"block_num": json.Number("2397613"), "value": "71817150413"},
	}
	out, err := copyRows("id", 8453, 2397613, rows)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "id", out[0][0])
	assert.Equal(t, int64(8453), out[0][1])
	assert.JSONEq(t, `{"block_num":2397613,"value":"71817150413"}`, string(out[0][3].([]byte)))
}

// TestStore runs against a real database when INDEXSUPPLY_TEST_DSN is set.
func TestStore(t *testing.T) {
	dsn := os.Getenv("INDEXSUPPLY_TEST_DSN")
	if dsn == "" {
		t.Skip("INDEXSUPPLY_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Open(ctx, dsn, 2)
	require.NoError(t, err)
	defer pool.Close()

	key := Key{Chain: 8453, Query: "select n from t " + time.Now().String()}
	s := New(pool, key, 100)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM indexsupply_rows WHERE query_id = $1`, s.ID())
		_, _ = pool.Exec(context.Background(), `DELETE FROM indexsupply_progress WHERE query_id = $1`, s.ID())
	})

	next, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), next)

	require.NoError(t, s.Save(ctx, 120, []indexsupply.Row{{"n": json.Number("1")}, {"n": json.Number("2")}}))
	require.NoError(t, s.Save(ctx, 121, nil))

	next, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(122), next)

	entries, err := List(ctx, pool)
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.QueryID == s.ID() {
			found = true
			assert.Equal(t, uint64(121), e.BlockNum)
			assert.Equal(t, int64(2), e.Rows)
		}
	}
	assert.True(t, found)
}
