package pipe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// TestExceptionQueue_Raise 记录故障并通知
func TestExceptionQueue_Raise(t *testing.T) {
	q := NewExceptionQueue()
	assert.Nil(t, q.First())
	assert.False(t, closed(q.Notify()))

	q.Raise(nil)
	assert.Equal(t, 0, q.Len())

	e1, e2 := errors.New("e1"), errors.New("e2")
	q.Raise(e1)
	q.Raise(e2)
	assert.Equal(t, e1, q.First())
	assert.Equal(t, []error{e1, e2}, q.All())
	assert.True(t, closed(q.Notify()))
}

// TestExceptionQueue_Encounter 合并后两个视图共享故障
func TestExceptionQueue_Encounter(t *testing.T) {
	upper, lower := NewExceptionQueue(), NewExceptionQueue()
	lowerNotify := lower.Notify()

	upper.Encounter(lower)
	upper.Encounter(lower)
	assert.False(t, closed(lowerNotify))

	e := errors.New("tcp reset")
	upper.Raise(e)
	assert.Equal(t, e, lower.First())
	assert.True(t, closed(lowerNotify), "合并前取得的通知通道也要关闭")

	// 已有故障的队列合并
	third := NewExceptionQueue()
	e3 := errors.New("tls alert")
	third.Raise(e3)
	lower.Encounter(third)
	require.Len(t, third.All(), 2)
	assert.Equal(t, []error{e, e3}, upper.All())

	// 空队列合并进已有故障的队列，其通知立即关闭
	fresh := NewExceptionQueue()
	freshNotify := fresh.Notify()
	upper.Encounter(fresh)
	assert.True(t, closed(freshNotify))
}
