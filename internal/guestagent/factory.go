package guestagent

import (
	"net"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/pkg/errs"
)

// Factory hands out guest clients for instances.
type Factory interface {
	Guest(instance *model.Instance) (API, error)
	Forget(instanceID string)
}

type conn struct {
	target string
	cc     *grpc.ClientConn
}

// ClientFactory keeps one connection per instance and redials when the
// instance address changes.
type ClientFactory struct {
	logger     *logrus.Logger
	port       int
	heartbeats HeartbeatReader
	cfg        Config
	dialOpts   []grpc.DialOption

	mu    sync.Mutex
	conns map[string]conn
}

func NewClientFactory(logger *logrus.Logger, port int, heartbeats HeartbeatReader, cfg Config, opts ...grpc.DialOption) *ClientFactory {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	return &ClientFactory{
		logger:     logger,
		port:       port,
		heartbeats: heartbeats,
		cfg:        cfg,
		dialOpts:   opts,
		conns:      make(map[string]conn),
	}
}

func (f *ClientFactory) Guest(instance *model.Instance) (API, error) {
	ip := instance.PrimaryIP()
	if ip == "" {
		return nil, errs.New(errs.KindGuestUnreachable, "", "instance %s has no address yet", instance.ID)
	}
	target := net.JoinHostPort(ip, strconv.Itoa(f.port))

	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.conns[instance.ID]
	if !ok || c.target != target {
		if ok {
			_ = c.cc.Close()
		}

		cc, err := grpc.NewClient(target, f.dialOpts...)
		if err != nil {
			return nil, errs.Wrap(errs.KindGuestUnreachable, err, "dial guest agent of instance %s", instance.ID)
		}
		c = conn{target: target, cc: cc}
		f.conns[instance.ID] = c
	}

	return NewClient(f.logger, instance.ID, c.cc, f.heartbeats, f.cfg), nil
}

// Forget drops the cached connection of a deleted instance.
func (f *ClientFactory) Forget(instanceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.conns[instanceID]; ok {
		_ = c.cc.Close()
		delete(f.conns, instanceID)
	}
}

func (f *ClientFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, c := range f.conns {
		_ = c.cc.Close()
		delete(f.conns, id)
	}
}
