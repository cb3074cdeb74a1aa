package logging

import (
	"github.com/sirupsen/logrus"
)

type ServiceConfig struct {
	Env     string
	AppName string
	Version string
}

// ServiceHook stamps every entry with the process identity.
type ServiceHook struct {
	config ServiceConfig
}

func NewServiceHook(config ServiceConfig) *ServiceHook {
	return &ServiceHook{config: config}
}

func (s *ServiceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *ServiceHook) Fire(entry *logrus.Entry) error {
	entry.Data["env"] = s.config.Env
	entry.Data["serviceName"] = s.config.AppName
	if s.config.Version != "" {
		entry.Data["version"] = s.config.Version
	}

	return nil
}
