package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []recorded
	err  error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.msgs = append(f.msgs, recorded{subj, data})
	return f.err
}

func TestPublish(t *testing.T) {
	conn := &fakeConn{}
	p := newNATS(conn, "rig1")

	assert.True(t, p.Last().Neutral)
	assert.Equal(t, -1, p.Last().Slot)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := Event{Gear: 2, Modified: true, Slot: 7, Brake: 300, At: at}
	require.NoError(t, p.Publish(e))

	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "rig1.gear", conn.msgs[0].subject)
	assert.JSONEq(t, `{"gear":2,"modified":true,"neutral":false,"slot":7,"brake":300,"at":"2024-05-01T12:00:00Z"}`, string(conn.msgs[0].data))

	var back Event
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &back))
	assert.Equal(t, e, back)
	assert.Equal(t, e, p.Last())
}

func TestPublishError(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := newNATS(conn, "hshifter")
	assert.Error(t, p.Publish(Event{Neutral: true, Slot: -1}))
}

func TestConnectDisabled(t *testing.T) {
	p, err := Connect(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(Event{}))
	assert.NoError(t, p.Close())
}
