package config

import (
	"time"

	"golang.org/x/text/language"
)

const (
	productionEnv = "production"
)

type WebConfig struct {
	AppName  string
	Port     string
	Env      string
	Version  string
	LogLevel string
}

type LanguageConfig struct {
	Default   language.Tag
	Languages []language.Tag
}

type MysqlDBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SlowQueryThreshold logs statements slower than this; zero disables it.
	SlowQueryThreshold time.Duration
}

type APIEndpointsConfig struct {
	ComputeEndpoint      string
	NetworkEndpoint      string
	IdentityEndpoint     string
	BlockStorageEndpoint string
	ControllerEndpoint   string
}

type OpenStackApiConfig struct {
	NovaMicroVersion    string
	ManagementNetworkID string
}

// ServiceCredentialsConfig is the service account the control plane uses
// for IaaS calls made outside a tenant request (pollers, sweepers).
type ServiceCredentialsConfig struct {
	Username    string
	Password    string
	ProjectID   string
	UserDomain  string
	ProjectName string
}

type ClusterConfig struct {
	UsageTimeout        time.Duration
	StateChangeWaitTime time.Duration
	StateChangePollTime time.Duration
	// Workers bounds the number of cluster workflows running at once.
	Workers int
}

type InstanceConfig struct {
	UsageTimeout          time.Duration
	PollerInterval        time.Duration
	MaxAcceptedVolumeSize int
}

type AgentConfig struct {
	Port            int
	CallLowTimeout  time.Duration
	CallHighTimeout time.Duration
	HeartbeatExpiry time.Duration
}

type QuotaConfig struct {
	MaxInstancesPerTenant int
	MaxVolumesPerTenant   int
	MaxBackupsPerTenant   int
	ReservationExpire     time.Duration
	SweepInterval         time.Duration
}

type LogstashConfig struct {
	Host string
	Port int
}

type OpenSearchConfig struct {
	Addresses          []string
	Username           string
	Password           string
	Index              string
	MinLevel           string
	InsecureSkipVerify bool
}

func (w WebConfig) IsProductionEnv() bool {
	return w.Env == productionEnv
}
