package framework

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeItem(counter int) string {
	return fmt.Sprintf("case-%d", counter)
}

func acceptTestItems(q *MessageSortingQueue[string], counters ...int) {
	for _, c := range counters {
		q.Accept(c, fakeItem(c))
	}
}

func expectTestItems(t *testing.T, q *MessageSortingQueue[string], counters ...int) {
	for _, c := range counters {
		select {
		case item := <-q.C:
			assert.Equal(t, fakeItem(c), item)
		case <-time.After(time.Second):
			require.Fail(t, "timed out waiting for item from queue",
				"was waiting for item %d; deferred items were [%s]", c, strings.Join(q.Deferred(), ","))
		}
	}
}

func expectDeferredItems(t *testing.T, q *MessageSortingQueue[string], counters ...int) {
	expected := []string{}
	for _, c := range counters {
		expected = append(expected, fakeItem(c))
	}
	assert.Equal(t, expected, q.Deferred(), "did not see expected items in deferred list")
}

func TestMessageSortingQueueWithMessagesInOrder(t *testing.T) {
	q := NewMessageSortingQueue[string](10)
	acceptTestItems(q, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	expectDeferredItems(t, q)
	expectTestItems(t, q, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
}

func TestMessageSortingQueueWithMessagesOutOfOrder(t *testing.T) {
	q := NewMessageSortingQueue[string](10)

	acceptTestItems(q, 3)
	expectDeferredItems(t, q, 3)

	acceptTestItems(q, 2)
	expectDeferredItems(t, q, 2, 3)

	acceptTestItems(q, 6)
	expectDeferredItems(t, q, 2, 3, 6)

	acceptTestItems(q, 1)
	expectTestItems(t, q, 1, 2, 3)
	expectDeferredItems(t, q, 6)

	acceptTestItems(q, 5)
	expectDeferredItems(t, q, 5, 6)

	acceptTestItems(q, 4)
	expectTestItems(t, q, 4, 5, 6)
	expectDeferredItems(t, q)
}

func TestMessageSortingQueueClose(t *testing.T) {
	q := NewMessageSortingQueue[string](1)
	acceptTestItems(q, 1)
	q.Close()
	q.Close()
	expectTestItems(t, q, 1)
	_, ok := <-q.C
	assert.False(t, ok)
}
