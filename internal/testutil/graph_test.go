package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

func TestGraph(t *testing.T) {
	g := Graph(t, []*pipeline.Node{
		Node("read", Kind(pipeline.KindInput)),
		Node("left"),
		Node("right"),
		Node("cat", Inputs(2)),
		Node("write", Kind(pipeline.KindOutput)),
	},
		E("read", "left", 0),
		E("read", "right", 0),
		E("left", "cat", 0),
		E("right", "cat", 1),
		E("cat", "write", 0),
	)

	assert.Equal(t, 5, g.Len())
	assert.Equal(t, []string{"left", "right"}, g.Upstream("cat"))

	read, _ := g.Node("read")
	assert.Equal(t, 0, read.NumInputs)
}

func TestLabel(t *testing.T) {
	out, err := Label("src")(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "src", out)

	out, err = Label("cat")(context.Background(), []any{"a", "b[a]"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "cat[a b[a]]", out)
}
