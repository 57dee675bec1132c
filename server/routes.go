package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.LoggingMiddleware, s.RecoverMiddleware))

	if s.authorizer != nil {
		s.RegisterRouteFunc("GET "+RouteAuthStart, ChainMiddleware(s.AuthStartHandler(), s.HTMLMiddleware()...))
	}
}
