package logging

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type LogstashConfig struct {
	Host string
	Port int
}

// LogstashHook ships entries as JSON datagrams. Delivery is best effort.
type LogstashHook struct {
	conn *net.UDPConn
}

func NewLogstashHook(config LogstashConfig) (*LogstashHook, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", config.Host, config.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP: %w", err)
	}

	return &LogstashHook{conn: conn}, nil
}

func (h *LogstashHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *LogstashHook) Fire(entry *logrus.Entry) error {
	data, err := json.Marshal(document(entry, "@timestamp", entry.Time.Format(time.RFC3339)))
	if err != nil {
		return err
	}

	if _, err := h.conn.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send log via UDP: %v\n", err)
	}

	return nil
}
