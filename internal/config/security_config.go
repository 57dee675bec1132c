package config

type SecurityConfig interface {
	GetEncryptionKey() string
}

type SecuritySettings struct {
	// EncryptionKey seals access and refresh tokens at rest. Any length;
	// the sealing key is derived from it.
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
}

func (s *Settings) GetEncryptionKey() string {
	return s.Security.EncryptionKey
}
