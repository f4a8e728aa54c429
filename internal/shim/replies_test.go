package shim

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestReplyGateIntercept(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(msg *dbus.Message)
		deferred bool
		wants    bool
	}{
		{
			name:     "start unit",
			deferred: true,
			wants:    true,
		},
		{
			name:     "no interface header",
			mutate:   func(msg *dbus.Message) { delete(msg.Headers, dbus.FieldInterface) },
			deferred: true,
			wants:    true,
		},
		{
			name:     "caller wants no reply",
			mutate:   func(msg *dbus.Message) { msg.Flags |= dbus.FlagNoReplyExpected },
			deferred: true,
			wants:    false,
		},
		{
			name: "other method",
			mutate: func(msg *dbus.Message) {
				msg.Headers[dbus.FieldMember] = dbus.MakeVariant("StopUnit")
			},
		},
		{
			name: "other interface",
			mutate: func(msg *dbus.Message) {
				msg.Headers[dbus.FieldInterface] = dbus.MakeVariant(PropertiesInterface)
			},
		},
		{
			name: "other path",
			mutate: func(msg *dbus.Message) {
				msg.Headers[dbus.FieldPath] = dbus.MakeVariant(dbus.ObjectPath(UnitsPath))
			},
		},
		{
			name: "arguments do not match",
			mutate: func(msg *dbus.Message) {
				msg.Headers[dbus.FieldSignature] = dbus.MakeVariant(dbus.ParseSignatureMust("s"))
			},
		},
		{
			name:   "no signature",
			mutate: func(msg *dbus.Message) { delete(msg.Headers, dbus.FieldSignature) },
		},
		{
			name:   "signal",
			mutate: func(msg *dbus.Message) { msg.Type = dbus.TypeSignal },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewJobGate()
			msg := managerCall("StartUnit", 0)
			if tt.mutate != nil {
				tt.mutate(msg)
			}
			flags := msg.Flags

			gate.Intercept(msg)

			if tt.deferred {
				assert.NotZero(t, msg.Flags&dbus.FlagNoReplyExpected)
			} else {
				assert.Equal(t, flags, msg.Flags)
			}

			deferred, wants := gate.take(msg)
			assert.Equal(t, tt.deferred, deferred)
			assert.Equal(t, tt.wants, wants)

			deferred, _ = gate.take(msg)
			assert.False(t, deferred, "take consumes the entry")
		})
	}
}

func TestReplyGateTransientUnit(t *testing.T) {
	gate := NewJobGate()
	msg := managerCall("StartTransientUnit", 0)

	gate.Intercept(msg)

	deferred, wants := gate.take(msg)
	assert.True(t, deferred)
	assert.True(t, wants)
	assert.Empty(t, gate.pending)
}

func TestNilReplyGate(t *testing.T) {
	var gate *ReplyGate
	deferred, wants := gate.take(managerCall("StartUnit", 0))
	assert.False(t, deferred)
	assert.False(t, wants)
}

func TestJobRemovedSignal(t *testing.T) {
	sig := newJobRemoved(":1.7", "session-1.scope", "done")

	assert.Equal(t, dbus.TypeSignal, sig.Type)
	assert.Equal(t, dbus.ObjectPath(ObjectPath), header(sig, dbus.FieldPath))
	assert.Equal(t, ":1.7", header(sig, dbus.FieldDestination))
	assert.Equal(t, dbus.ParseSignatureMust("uoss"), header(sig, dbus.FieldSignature))
	assert.NoError(t, sig.IsValid())

	broadcast := newJobRemoved("", "", "")
	assert.NotContains(t, broadcast.Headers, dbus.FieldDestination)
}
