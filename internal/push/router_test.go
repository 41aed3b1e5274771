package push

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/metrics"
)

func newTestRouter(system func(Envelope)) *router {
	if system == nil {
		system = func(Envelope) {}
	}
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test", "push")
	return newRouter(logger.Nop(), m, system)
}

func frame(t *testing.T, typ, id string, data interface{}) []byte {
	t.Helper()
	env := Envelope{Type: typ, ID: id, Timestamp: 1700000000000}
	if data != nil {
		raw, err := json.Marshal(data)
		assert.NoError(t, err)
		env.Data = raw
	}
	raw, err := json.Marshal(env)
	assert.NoError(t, err)
	return raw
}

func TestDispatchFansOutToTypedSubscriber(t *testing.T) {
	r := newTestRouter(nil)

	var got []Envelope
	r.subscribe("notification", func(env Envelope) {
		got = append(got, env)
	})

	r.dispatch(frame(t, "notification", "f-1", map[string]string{"id": "n-1"}))

	assert.Len(t, got, 1)
	assert.Equal(t, "notification", got[0].Type)
	assert.Equal(t, "f-1", got[0].ID)
}

func TestDispatchSkipsOtherTypes(t *testing.T) {
	r := newTestRouter(nil)

	var calls int
	r.subscribe("notification_read", func(Envelope) { calls++ })

	r.dispatch(frame(t, "notification", "f-1", nil))

	assert.Zero(t, calls)
}

func TestDispatchGeneralSubscriberSeesAllDomainFrames(t *testing.T) {
	r := newTestRouter(nil)

	var types []string
	r.onMessage(func(env Envelope) { types = append(types, env.Type) })

	r.dispatch(frame(t, "notification", "f-1", nil))
	r.dispatch(frame(t, "notification_deleted", "f-2", nil))

	assert.Equal(t, []string{"notification", "notification_deleted"}, types)
}

func TestDispatchReservedTypesGoToSystemOnly(t *testing.T) {
	var system []string
	r := newTestRouter(func(env Envelope) { system = append(system, env.Type) })

	var domain int
	r.onMessage(func(Envelope) { domain++ })

	r.dispatch(frame(t, TypeKeepaliveResponse, "f-1", nil))
	r.dispatch(frame(t, TypeConnectionEstablished, "f-2", map[string]string{"connection_id": "c-1"}))

	assert.Equal(t, []string{TypeKeepaliveResponse, TypeConnectionEstablished}, system)
	assert.Zero(t, domain, "reserved frames must not reach domain subscribers")
}

func TestDispatchDropsDuplicateFrameID(t *testing.T) {
	r := newTestRouter(nil)

	var calls int
	r.subscribe("notification", func(Envelope) { calls++ })

	raw := frame(t, "notification", "dup-1", nil)
	r.dispatch(raw)
	r.dispatch(raw)

	assert.Equal(t, 1, calls)
}

func TestDispatchDropsMalformedFrame(t *testing.T) {
	r := newTestRouter(nil)

	var calls int
	r.onMessage(func(Envelope) { calls++ })

	r.dispatch([]byte("{not json"))
	r.dispatch([]byte(`{"data":{}}`)) // no type

	assert.Zero(t, calls)
}

func TestDispatchRecoversPanickingHandler(t *testing.T) {
	r := newTestRouter(nil)

	var after int
	r.subscribe("notification", func(Envelope) { panic("bad handler") })
	r.subscribe("notification", func(Envelope) { after++ })

	assert.NotPanics(t, func() {
		r.dispatch(frame(t, "notification", "f-1", nil))
	})
	assert.Equal(t, 1, after, "handlers after the panicking one still run")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := newTestRouter(nil)

	var calls int
	unsub := r.subscribe("notification", func(Envelope) { calls++ })

	r.dispatch(frame(t, "notification", "f-1", nil))
	unsub()
	r.dispatch(frame(t, "notification", "f-2", nil))

	assert.Equal(t, 1, calls)
}
