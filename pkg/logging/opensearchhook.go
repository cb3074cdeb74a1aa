package logging

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go"
	"github.com/sirupsen/logrus"
)

type OpenSearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	// MinLevel is the least severe level shipped; empty ships everything.
	MinLevel           string
	InsecureSkipVerify bool
}

// OpenSearchHook indexes entries into a daily index <index>-YYYY-MM-DD.
type OpenSearchHook struct {
	client *opensearch.Client
	index  string
	levels []logrus.Level
}

func NewOpenSearchHook(config OpenSearchConfig) (*OpenSearchHook, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec
			},
		},
	})
	if err != nil {
		return nil, err
	}

	levels := logrus.AllLevels
	if lvl, err := logrus.ParseLevel(config.MinLevel); err == nil {
		levels = levelsFrom(lvl)
	}

	return &OpenSearchHook{
		client: client,
		index:  config.Index,
		levels: levels,
	}, nil
}

func (h *OpenSearchHook) Levels() []logrus.Level {
	return h.levels
}

func (h *OpenSearchHook) indexName(t time.Time) string {
	return fmt.Sprintf("%s-%s", h.index, t.UTC().Format("2006-01-02"))
}

func (h *OpenSearchHook) Fire(entry *logrus.Entry) error {
	data, err := json.Marshal(document(entry, "timestamp", entry.Time))
	if err != nil {
		return err
	}

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := h.client.Index(
		h.indexName(entry.Time),
		bytes.NewReader(data),
		h.client.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}

	return resp.Body.Close()
}
