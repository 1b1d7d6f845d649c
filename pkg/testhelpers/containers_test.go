//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestGraph_Seeded(t *testing.T) {
	tg := GetTestGraph(t)

	rows, err := tg.Client.Run(context.Background(), "MATCH (g:Grant) RETURN count(g) AS grants", nil, 10)
	require.NoError(t, err)
	require.Len(t, rows.Records, 1)
	assert.EqualValues(t, 3, rows.Records[0]["grants"])
}
