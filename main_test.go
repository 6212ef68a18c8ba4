package main

import (
	"bytes"
	"testing"

	"TinyRDB/index"
	"TinyRDB/types"

	"github.com/pkg/errors"
	"github.com/stvp/assert"
)

// brokenChain passes the structural check but fails to count its leaves.
type brokenChain struct {
	index.Manager
	lenErr error
}

func (b *brokenChain) Check() error   { return nil }
func (b *brokenChain) Ref() index.Ref { return index.Ref{DB: "d", Table: "t", Index: "i"} }
func (b *brokenChain) Len() (int, error) {
	if b.lenErr != nil {
		return 0, b.lenErr
	}
	return 3, nil
}

func TestCheckIndexReportsCountFailure(t *testing.T) {
	var out bytes.Buffer
	readErr := types.NewIOError("read", "t_i.idx", 4, errors.New("short read"))
	err := checkIndex(&out, &brokenChain{lenErr: readErr})
	assert.True(t, errors.Is(err, types.ErrIO))
	assert.Equal(t, out.Len(), 0)

	assert.Nil(t, checkIndex(&out, &brokenChain{}))
	assert.Equal(t, out.String(), "ok (3 entries)\n")
}
