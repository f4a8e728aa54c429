package cgmanager

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Transport issues method calls to the cgroup manager and waits for the reply.
type Transport interface {
	Call(ctx context.Context, iface, method string, args ...any) *dbus.Call
	Close() error
}

// DialFunc opens a Transport to the manager listening at address.
type DialFunc func(ctx context.Context, address string) (Transport, error)

// peer is a Transport over a private (non-bus) D-Bus connection. cgmanager
// speaks D-Bus directly on its socket, so there is no bus daemon, no Hello
// and no destination header.
type peer struct {
	conn *dbus.Conn
}

// Dial connects and authenticates to the cgroup manager socket.
func Dial(ctx context.Context, address string) (Transport, error) {
	conn, err := dbus.Dial(address, dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	if err := conn.Auth(nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to authenticate to %s: %w", address, err)
	}
	return &peer{conn: conn}, nil
}

func (p *peer) Call(ctx context.Context, iface, method string, args ...any) *dbus.Call {
	msg := &dbus.Message{
		Type: dbus.TypeMethodCall,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldPath:      dbus.MakeVariant(dbus.ObjectPath(ObjectPath)),
			dbus.FieldInterface: dbus.MakeVariant(iface),
			dbus.FieldMember:    dbus.MakeVariant(method),
		},
		Body: args,
	}
	if len(args) > 0 {
		msg.Headers[dbus.FieldSignature] = dbus.MakeVariant(dbus.SignatureOf(args...))
	}

	call := p.conn.SendWithContext(ctx, msg, make(chan *dbus.Call, 1))
	if call.Err != nil {
		return call
	}
	select {
	case done := <-call.Done:
		return done
	case <-ctx.Done():
		return &dbus.Call{Method: method, Err: ctx.Err()}
	}
}

func (p *peer) Close() error {
	return p.conn.Close()
}
