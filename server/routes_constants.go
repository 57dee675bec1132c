package server

// Route path constants
const (
	RouteCallback  = "/auth/{platform}/callback"
	RouteAuthStart = "/auth/{platform}/start"
	RouteHealth    = "/health"
)
