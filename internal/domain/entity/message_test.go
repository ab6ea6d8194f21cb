package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamescrow/pkg/errors"
)

func TestReadCursor_Advance(t *testing.T) {
	c := &ReadCursor{OrderID: "order-1", UserID: "buyer-1"}

	m2 := &ChatMessage{ID: "m2", Seq: 2}
	require.NoError(t, c.Advance(m2, t0))
	assert.Equal(t, "m2", c.MessageID)

	err := c.Advance(m2, t0)
	assert.True(t, errors.Is(err, errors.CodeStaleReadCursor))

	err = c.Advance(&ChatMessage{ID: "m1", Seq: 1}, t0)
	assert.True(t, errors.Is(err, errors.CodeStaleReadCursor))
	assert.Equal(t, int64(2), c.Seq)
}

func TestParseTopic(t *testing.T) {
	kind, id, ok := ParseTopic(OrderTopic("abc"))
	assert.True(t, ok)
	assert.Equal(t, TopicKindOrder, kind)
	assert.Equal(t, "abc", id)

	kind, id, ok = ParseTopic("user:u1")
	assert.True(t, ok)
	assert.Equal(t, TopicKindUser, kind)
	assert.Equal(t, "u1", id)

	for _, topic := range []string{"", "order:", "wallet:u1", "order"} {
		_, _, ok := ParseTopic(topic)
		assert.False(t, ok, topic)
	}
}

func TestClientMessageKind(t *testing.T) {
	assert.True(t, ClientMessageKind(MessageKindText))
	assert.True(t, ClientMessageKind(MessageKindVideo))
	assert.False(t, ClientMessageKind(MessageKindSystem))
	assert.False(t, ClientMessageKind("STICKER"))
}
