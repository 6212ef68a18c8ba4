package bplus

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stvp/assert"
)

func TestInspectIndexFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspect.idx")
	tree, err := CreateFile(path, intKS, Options{Degree: 2})
	assert.Nil(t, err)
	for _, k := range []int32{10, 20, 30, 40, 50} {
		assert.Nil(t, tree.Insert(ik(k), k))
	}
	assert.Nil(t, tree.Close())

	var buf bytes.Buffer
	assert.Nil(t, InspectIndexFileTo(&buf, path))
	out := buf.String()

	assert.True(t, strings.Contains(out, "degree = 2"), out)
	assert.True(t, strings.Contains(out, "[page 0] INTERNAL keys=[(30)] children=[1 2]"), out)
	assert.True(t, strings.Contains(out, "[page 1] LEAF numKeys=2 next=2"), out)
	assert.True(t, strings.Contains(out, "(40) -> 40"), out)
	assert.True(t, strings.Contains(out, "Check: ok"), out)
}
