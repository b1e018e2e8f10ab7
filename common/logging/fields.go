package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService  = "service"
	FieldAgent    = "agent"
	FieldSymbol   = "symbol"
	FieldSignalID = "signal_id"
	FieldOrderID  = "order_id"
	FieldSubject  = "subject"
	FieldPriority = "priority"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldError    = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Agent returns a slog attribute for an agent name.
func Agent(name string) slog.Attr {
	return slog.String(FieldAgent, name)
}

// Symbol returns a slog attribute for a ticker symbol.
func Symbol(sym string) slog.Attr {
	return slog.String(FieldSymbol, sym)
}

// SignalID returns a slog attribute for a trading signal ID.
func SignalID(id string) slog.Attr {
	return slog.String(FieldSignalID, id)
}

// OrderID returns a slog attribute for an order ID.
func OrderID(id string) slog.Attr {
	return slog.String(FieldOrderID, id)
}

// Subject returns a slog attribute for a bus subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Priority returns a slog attribute for a message priority tier.
func Priority(p string) slog.Attr {
	return slog.String(FieldPriority, p)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
