package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/pkg/errs"
)

// correlationKeys are lifted out of "fields" so shipped documents can be
// filtered on them without a nested mapping.
var correlationKeys = []string{
	"tenant_id",
	"cluster_id",
	"instance_id",
	"request_id",
	"action",
	"workflow",
}

// document is the shape of a shipped log entry.
func document(entry *logrus.Entry, timeKey string, timestamp interface{}) map[string]interface{} {
	fields := make(logrus.Fields, len(entry.Data))
	doc := map[string]interface{}{
		timeKey:   timestamp,
		"level":   entry.Level.String(),
		"message": entry.Message,
	}

	for k, v := range entry.Data {
		if k == logrus.ErrorKey {
			continue
		}
		fields[k] = v
	}
	for _, k := range correlationKeys {
		if v, ok := fields[k]; ok {
			doc[k] = v
			delete(fields, k)
		}
	}
	doc["fields"] = fields

	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		e := map[string]interface{}{
			"message": err.Error(),
			"type":    fmt.Sprintf("%T", err),
		}
		if kind := errs.KindOf(err); kind != "" {
			e["kind"] = string(kind)
		}
		if reason := errs.ReasonOf(err); reason != "" {
			e["reason"] = reason
		}
		doc["error"] = e
	}

	return doc
}

func levelsFrom(min logrus.Level) []logrus.Level {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= min {
			levels = append(levels, l)
		}
	}

	return levels
}
