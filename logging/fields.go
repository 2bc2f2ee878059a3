package logging

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Set by the auth middleware
	FieldAuthorID = "author_id"
	FieldPeer     = "peer"

	FieldService   = "service"
	FieldComponent = "component"
	FieldSource    = "source"
)
