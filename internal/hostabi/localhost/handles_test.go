package localhost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eugener/saru/internal/saru"
)

func TestHandleTable_NewIsOneBased(t *testing.T) {
	t.Parallel()
	var tbl handleTable[string]
	h := tbl.new("a")
	assert.Equal(t, saru.Handle(1), h)

	h2 := tbl.new("b")
	assert.Equal(t, saru.Handle(2), h2)
}

func TestHandleTable_GetSet(t *testing.T) {
	t.Parallel()
	var tbl handleTable[int]
	h := tbl.new(10)

	v, ok := tbl.get(h)
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	assert.True(t, tbl.set(h, 20))
	v, ok = tbl.get(h)
	assert.True(t, ok)
	assert.Equal(t, 20, v)
}

func TestHandleTable_OutOfRange(t *testing.T) {
	t.Parallel()
	var tbl handleTable[int]
	tbl.new(1)

	_, ok := tbl.get(saru.Handle(0))
	assert.False(t, ok, "handle 0 is never issued")

	_, ok = tbl.get(saru.Handle(99))
	assert.False(t, ok)

	assert.False(t, tbl.set(saru.Handle(99), 1))
}
