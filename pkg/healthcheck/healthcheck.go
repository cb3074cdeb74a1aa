package healthcheck

import (
	"sync/atomic"
)

var serverUp atomic.Bool

func InitHealthCheck() {
	serverUp.Store(true)
}

func Readiness() bool {
	return serverUp.Load()
}

func Liveness() bool {
	return serverUp.Load()
}

func ServerShutdown() {
	serverUp.Store(false)
}

func IsConnectionSuccessful(conn map[string]bool) bool {
	for _, status := range conn {
		if !status {
			return false
		}
	}

	return true
}
