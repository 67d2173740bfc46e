package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	ClientIDKey    contextKey = "client_id"
	SystemIDKey    contextKey = "system_id"
	ConnectionKey  contextKey = "conn_id"
	MessageIDKey   contextKey = "msg_id"
	VendorIDKey    contextKey = "vendor_id"
	HostIDKey      contextKey = "host_id"
	VendorMsgIDKey contextKey = "vendor_msg_id"
	RemoteAddrKey  contextKey = "remote_addr"
	CommandIDKey   contextKey = "cmd_id"
	SeqNumberKey   contextKey = "seq_num"
	HandlerKey     contextKey = "handler"
)

// ContextHandler wraps another slog.Handler and adds attributes from context.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler creates a handler that extracts values from context.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle adds context attributes before calling the wrapped handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if clientID, ok := ctx.Value(ClientIDKey).(string); ok {
		r.AddAttrs(slog.String("client_id", clientID))
	}
	if sysID, ok := ctx.Value(SystemIDKey).(string); ok {
		r.AddAttrs(slog.String("system_id", sysID))
	}
	if connID, ok := ctx.Value(ConnectionKey).(string); ok {
		r.AddAttrs(slog.String("conn_id", connID))
	}
	if msgID, ok := ctx.Value(MessageIDKey).(string); ok {
		r.AddAttrs(slog.String("msg_id", msgID))
	}
	if vendorID, ok := ctx.Value(VendorIDKey).(string); ok {
		r.AddAttrs(slog.String("vendor_id", vendorID))
	}
	if hostID, ok := ctx.Value(HostIDKey).(string); ok {
		r.AddAttrs(slog.String("host_id", hostID))
	}
	if vendorMsgID, ok := ctx.Value(VendorMsgIDKey).(string); ok {
		r.AddAttrs(slog.String("vendor_msg_id", vendorMsgID))
	}
	if addr, ok := ctx.Value(RemoteAddrKey).(string); ok {
		r.AddAttrs(slog.String("remote_addr", addr))
	}
	if cmdID, ok := ctx.Value(CommandIDKey).(string); ok {
		r.AddAttrs(slog.String("cmd_id", cmdID))
	}
	if seq, ok := ctx.Value(SeqNumberKey).(int32); ok {
		r.AddAttrs(slog.Int("seq_num", int(seq)))
	}
	if handler, ok := ctx.Value(HandlerKey).(string); ok {
		r.AddAttrs(slog.String("handler", handler))
	}
	return h.Handler.Handle(ctx, r)
}

// Helper functions to add values to context

func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}

func ContextWithSystemID(ctx context.Context, systemID string) context.Context {
	return context.WithValue(ctx, SystemIDKey, systemID)
}

func ContextWithConnectionID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, ConnectionKey, connID)
}

func ContextWithMessageID(ctx context.Context, msgID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, msgID)
}

func ContextWithVendorID(ctx context.Context, vendorID string) context.Context {
	return context.WithValue(ctx, VendorIDKey, vendorID)
}

func ContextWithHostID(ctx context.Context, hostID string) context.Context {
	return context.WithValue(ctx, HostIDKey, hostID)
}

func ContextWithVendorMsgID(ctx context.Context, vendorMsgID string) context.Context {
	return context.WithValue(ctx, VendorMsgIDKey, vendorMsgID)
}

func ContextWithRemoteAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, RemoteAddrKey, addr)
}

func ContextWithHandler(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, HandlerKey, name)
}

func ContextWithPDUInfo(ctx context.Context, commandID string, seqNumber int32) context.Context {
	ctx = context.WithValue(ctx, CommandIDKey, commandID)
	return context.WithValue(ctx, SeqNumberKey, seqNumber)
}
