package config

type ListenerConfig interface {
	GetCallbackHost() string
	GetCallbackPort() int
	GetFallbackPort() int
}

type ListenerSettings struct {
	Host         string `yaml:"host" env:"CALLBACK_HOST" env-default:"127.0.0.1"`
	Port         int    `yaml:"port" env:"CALLBACK_PORT" env-default:"3000"`
	FallbackPort int    `yaml:"fallback_port" env:"CALLBACK_FALLBACK_PORT" env-default:"3001"`
}

// GetCallbackHost is always a loopback address; redirects are only ever
// received from the local browser.
func (s *Settings) GetCallbackHost() string {
	switch s.Listener.Host {
	case "localhost", "::1", "127.0.0.1":
		return s.Listener.Host
	}
	return "127.0.0.1"
}

func (s *Settings) GetCallbackPort() int {
	if s.Listener.Port == 0 {
		return 3000
	}
	return s.Listener.Port
}

func (s *Settings) GetFallbackPort() int {
	if s.Listener.FallbackPort == 0 {
		return 3001
	}
	return s.Listener.FallbackPort
}
