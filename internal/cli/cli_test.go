package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serviceorder "github.com/itsmewidii/fitriacookry/internal/service/order"
)

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStats(&buf, serviceorder.Stats{
		Labels: []string{"January", "March"},
		Data:   []int64{2, 5},
	}))

	out := buf.String()
	assert.Contains(t, out, "January")
	assert.Contains(t, out, "March")
	assert.Contains(t, out, "5")
	assert.Contains(t, out, "7")
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "fitria", root.Use)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"start", "migrate", "seed", "orders", "worker"})

	orders, _, err := root.Find([]string{"orders", "stats"})
	require.NoError(t, err)
	assert.Equal(t, "year", orders.Flags().Lookup("range").DefValue)

	exp, _, err := root.Find([]string{"orders", "export"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(exp.Flags().Lookup("out").DefValue, ".xlsx"))
}
