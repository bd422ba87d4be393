package job

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListenerNode_InvokeOnceFiresExactlyOnce(t *testing.T) {
	count := 0
	n := newListenerNode(nil, false, func(error) { count++ })

	n.invokeOnce(nil)
	n.invokeOnce(nil)
	n.invokeOnce(nil)

	assert.Equal(t, 1, count)
}

func TestListenerNode_InvokeOnceAfterDisposeNeverFires(t *testing.T) {
	fired := false
	n := newListenerNode(nil, false, func(error) { fired = true })
	n.Dispose()

	n.invokeOnce(nil)

	assert.False(t, fired)
}

func TestListenerNode_InvokeOncePassesCauseThrough(t *testing.T) {
	cause := errors.New("cancelled")
	var got error
	n := newListenerNode(nil, false, func(c error) { got = c })

	n.invokeOnce(cause)

	assert.Equal(t, cause, got)
}

func TestListenerNode_DisposeUnlinksFromList(t *testing.T) {
	list := newNodeList(true, 4)
	n := newListenerNode(nil, false, func(error) {})
	list.unsyncedAppend(n)

	n.Dispose()

	assert.Empty(t, list.snapshot())
}

func TestListenerNode_SeqIncreasesMonotonically(t *testing.T) {
	a := newListenerNode(nil, false, func(error) {})
	b := newListenerNode(nil, false, func(error) {})

	assert.Less(t, a.seq, b.seq)
}
