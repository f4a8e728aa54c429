package shim

import (
	"sync"

	"github.com/godbus/dbus/v5"
)

// Bus sends messages on the connection the manager is exported on.
type Bus interface {
	Send(msg *dbus.Message, ch chan *dbus.Call) *dbus.Call
}

type callKey struct {
	sender string
	serial uint32
}

// ReplyGate takes over the reply of calls that are followed by a JobRemoved
// signal. The bus library replies only after a handler returns, which would
// put the signal first; callers match the signal against the job path in the
// reply and would miss it. Intercepted calls are marked as not expecting a
// reply so the handler can send the reply and then the signal itself. An
// error returned by the handler is still sent by the bus library, which
// ignores the flag on that path.
type ReplyGate struct {
	mu      sync.Mutex
	methods map[string]string
	pending map[callKey]bool
}

// NewReplyGate creates a gate for the Manager methods in methods, keyed by
// member name with the argument signature as value.
func NewReplyGate(methods map[string]string) *ReplyGate {
	g := &ReplyGate{
		methods: make(map[string]string, len(methods)),
		pending: make(map[callKey]bool),
	}
	for member, sig := range methods {
		g.methods[member] = sig
	}
	return g
}

// Intercept is installed as the incoming message interceptor of the bus
// connection. It runs before the call is dispatched, so it only takes over
// calls whose body signature matches the method.
func (g *ReplyGate) Intercept(msg *dbus.Message) {
	if msg.Type != dbus.TypeMethodCall {
		return
	}
	path, _ := msg.Headers[dbus.FieldPath].Value().(dbus.ObjectPath)
	iface, _ := msg.Headers[dbus.FieldInterface].Value().(string)
	member, _ := msg.Headers[dbus.FieldMember].Value().(string)
	if path != ObjectPath || (iface != "" && iface != ManagerInterface) {
		return
	}
	// a call whose arguments do not decode never reaches the handler
	sig, _ := msg.Headers[dbus.FieldSignature].Value().(dbus.Signature)
	if want, ok := g.methods[member]; !ok || sig.String() != want {
		return
	}

	g.mu.Lock()
	g.pending[keyOf(msg)] = msg.Flags&dbus.FlagNoReplyExpected == 0
	g.mu.Unlock()

	msg.Flags |= dbus.FlagNoReplyExpected
}

// take reports whether the reply to msg was taken over and, if so, whether
// the caller wants one.
func (g *ReplyGate) take(msg *dbus.Message) (deferred, wantsReply bool) {
	if g == nil {
		return false, false
	}
	key := keyOf(msg)

	g.mu.Lock()
	defer g.mu.Unlock()
	wantsReply, deferred = g.pending[key]
	delete(g.pending, key)
	return deferred, wantsReply
}

func keyOf(msg *dbus.Message) callKey {
	sender, _ := msg.Headers[dbus.FieldSender].Value().(string)
	return callKey{sender: sender, serial: msg.Serial()}
}

func newReply(call *dbus.Message, values ...any) *dbus.Message {
	reply := &dbus.Message{
		Type: dbus.TypeMethodReply,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldReplySerial: dbus.MakeVariant(call.Serial()),
		},
		Body: values,
	}
	if sender, ok := call.Headers[dbus.FieldSender]; ok {
		reply.Headers[dbus.FieldDestination] = sender
	}
	if len(values) > 0 {
		reply.Headers[dbus.FieldSignature] = dbus.MakeVariant(dbus.SignatureOf(values...))
	}
	return reply
}

// newJobRemoved builds the JobRemoved signal for a finished placeholder
// job, addressed to dest only.
func newJobRemoved(dest, unitName, result string) *dbus.Message {
	body := []any{uint32(0), rootJob, unitName, result}
	sig := &dbus.Message{
		Type: dbus.TypeSignal,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldPath:      dbus.MakeVariant(dbus.ObjectPath(ObjectPath)),
			dbus.FieldInterface: dbus.MakeVariant(ManagerInterface),
			dbus.FieldMember:    dbus.MakeVariant("JobRemoved"),
			dbus.FieldSignature: dbus.MakeVariant(dbus.SignatureOf(body...)),
		},
		Body: body,
	}
	if dest != "" {
		sig.Headers[dbus.FieldDestination] = dbus.MakeVariant(dest)
	}
	return sig
}
