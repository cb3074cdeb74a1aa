// Package logging builds the process logger: JSON on stdout, optionally
// shipped to Logstash and OpenSearch.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	fieldKeyMsg     = "message"
	fieldKeyTime    = "timestamp"
	timestampFormat = "2006-01-02 15:04:05"
)

type Config struct {
	Service    ServiceConfig
	Level      string
	Logstash   *LogstashConfig
	OpenSearch *OpenSearchConfig
}

func NewLogger(config Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetReportCaller(true)
	logger.SetFormatter(jsonFormatter())

	if lvl, err := logrus.ParseLevel(config.Level); err == nil {
		logger.SetLevel(lvl)
	}

	// first, so the sinks see the stamped fields
	logger.AddHook(NewServiceHook(config.Service))

	// Logstash replaces stdout; a broken sink falls back to it.
	if config.Logstash != nil && config.Logstash.Host != "" && config.Logstash.Port > 0 {
		if hook, err := NewLogstashHook(*config.Logstash); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to Logstash: %v, falling back to console output\n", err)
		} else {
			logger.SetOutput(io.Discard)
			logger.AddHook(hook)
		}
	}

	if config.OpenSearch != nil && len(config.OpenSearch.Addresses) > 0 {
		if hook, err := NewOpenSearchHook(*config.OpenSearch); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create OpenSearch client: %v, skipping OpenSearch hook\n", err)
		} else {
			logger.AddHook(hook)
		}
	}

	return logger
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg:  fieldKeyMsg,
			logrus.FieldKeyTime: fieldKeyTime,
		},
		TimestampFormat: timestampFormat,
	}
}
