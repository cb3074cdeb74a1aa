package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const (
	EnvironmentTypeLocal = "local"
)

var GlobalConfig IConfigureManager

type IConfigureManager interface {
	GetWebConfig() WebConfig
	GetMysqlDBConfig() MysqlDBConfig
	GetLanguageConfig() LanguageConfig
	GetEndpointsConfig() APIEndpointsConfig
	GetOpenStackApiConfig() OpenStackApiConfig
	GetServiceCredentialsConfig() ServiceCredentialsConfig
	GetClusterConfig() ClusterConfig
	GetInstanceConfig() InstanceConfig
	GetAgentConfig() AgentConfig
	GetQuotaConfig() QuotaConfig
	GetLogstashConfig() LogstashConfig
	GetOpenSearchConfig() OpenSearchConfig
}

type configureManager struct {
	Web                WebConfig
	Mysql              MysqlDBConfig
	Language           LanguageConfig
	APIEndpoints       APIEndpointsConfig
	OpenStackApi       OpenStackApiConfig
	ServiceCredentials ServiceCredentialsConfig
	Cluster            ClusterConfig
	Instance           InstanceConfig
	Agent              AgentConfig
	Quota              QuotaConfig
	Logstash           LogstashConfig
	OpenSearch         OpenSearchConfig
}

func NewConfigureManager() IConfigureManager {
	configPath := "./"

	if os.Getenv("GO_VAULT_PATH") != "" {
		configPath = os.Getenv("GO_VAULT_PATH")
	}

	viper.SetConfigFile(fmt.Sprintf("%sconfig-%s.json", configPath, os.Getenv("golang_env")))
	viper.SetConfigType("json")
	viper.AutomaticEnv()
	setDefaults()

	_ = viper.ReadInConfig()

	GlobalConfig = &configureManager{
		Web:                loadWebConfig(),
		Mysql:              loadMysqlDBConfig(),
		Language:           loadLanguageConfig(),
		APIEndpoints:       loadAPIEndpointsConfig(),
		OpenStackApi:       loadOpenStackApiConfig(),
		ServiceCredentials: loadServiceCredentialsConfig(),
		Cluster:            loadClusterConfig(),
		Instance:           loadInstanceConfig(),
		Agent:              loadAgentConfig(),
		Quota:              loadQuotaConfig(),
		Logstash:           loadLogstashConfig(),
		OpenSearch:         loadOpenSearchConfig(),
	}

	return GlobalConfig
}

func setDefaults() {
	viper.SetDefault("APP_NAME", "vdb")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("NOVA_MICRO_VERSION", "2.60")

	viper.SetDefault("MYSQL_MAX_OPEN_CONNS", 100)
	viper.SetDefault("MYSQL_MAX_IDLE_CONNS", 10)
	viper.SetDefault("MYSQL_CONN_MAX_LIFETIME", 3600)
	viper.SetDefault("MYSQL_SLOW_QUERY_THRESHOLD_MS", 500)
	viper.SetDefault("OPENSEARCH_MIN_LEVEL", "info")

	viper.SetDefault("CLUSTER_USAGE_TIMEOUT", 36000)
	viper.SetDefault("STATE_CHANGE_WAIT_TIME", 600)
	viper.SetDefault("STATE_CHANGE_POLL_TIME", 3)
	viper.SetDefault("WORKFLOW_WORKERS", 64)

	viper.SetDefault("USAGE_TIMEOUT", 1800)
	viper.SetDefault("POLLER_INTERVAL", 3)
	viper.SetDefault("MAX_ACCEPTED_VOLUME_SIZE", 10)

	viper.SetDefault("AGENT_PORT", 8778)
	viper.SetDefault("AGENT_CALL_LOW_TIMEOUT", 15)
	viper.SetDefault("AGENT_CALL_HIGH_TIMEOUT", 600)
	viper.SetDefault("AGENT_HEARTBEAT_EXPIRY", 60)

	viper.SetDefault("MAX_INSTANCES_PER_TENANT", 10)
	viper.SetDefault("MAX_VOLUMES_PER_TENANT", 40)
	viper.SetDefault("MAX_BACKUPS_PER_TENANT", 50)
	viper.SetDefault("RESERVATION_EXPIRE", 86400)
	viper.SetDefault("RESERVATION_SWEEP_INTERVAL", 300)
}

func seconds(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}

func loadWebConfig() WebConfig {
	return WebConfig{
		AppName:  viper.GetString("APP_NAME"),
		Port:     viper.GetString("PORT"),
		Env:      viper.GetString("ENV"),
		Version:  viper.GetString("VERSION"),
		LogLevel: viper.GetString("LOG_LEVEL"),
	}
}

func loadLanguageConfig() LanguageConfig {
	return LanguageConfig{
		Default: language.English,
		Languages: []language.Tag{
			language.English,
		},
	}
}

func loadMysqlDBConfig() MysqlDBConfig {
	return MysqlDBConfig{
		URL:                viper.GetString("MYSQL_URL"),
		MaxOpenConns:       viper.GetInt("MYSQL_MAX_OPEN_CONNS"),
		MaxIdleConns:       viper.GetInt("MYSQL_MAX_IDLE_CONNS"),
		ConnMaxLifetime:    seconds("MYSQL_CONN_MAX_LIFETIME"),
		SlowQueryThreshold: time.Duration(viper.GetInt("MYSQL_SLOW_QUERY_THRESHOLD_MS")) * time.Millisecond,
	}
}

func loadAPIEndpointsConfig() APIEndpointsConfig {
	return APIEndpointsConfig{
		ComputeEndpoint:      viper.GetString("COMPUTE_ENDPOINT"),
		NetworkEndpoint:      viper.GetString("NETWORK_ENDPOINT"),
		IdentityEndpoint:     viper.GetString("IDENTITY_ENDPOINT"),
		BlockStorageEndpoint: viper.GetString("BLOCK_STORAGE_ENDPOINT"),
		ControllerEndpoint:   viper.GetString("CONTROLLER_ENDPOINT"),
	}
}

func loadOpenStackApiConfig() OpenStackApiConfig {
	return OpenStackApiConfig{
		NovaMicroVersion:    viper.GetString("NOVA_MICRO_VERSION"),
		ManagementNetworkID: viper.GetString("MANAGEMENT_NETWORK_ID"),
	}
}

func loadServiceCredentialsConfig() ServiceCredentialsConfig {
	return ServiceCredentialsConfig{
		Username:    viper.GetString("SERVICE_USERNAME"),
		Password:    viper.GetString("SERVICE_PASSWORD"),
		ProjectID:   viper.GetString("SERVICE_PROJECT_ID"),
		UserDomain:  viper.GetString("SERVICE_USER_DOMAIN"),
		ProjectName: viper.GetString("SERVICE_PROJECT_NAME"),
	}
}

func loadClusterConfig() ClusterConfig {
	return ClusterConfig{
		UsageTimeout:        seconds("CLUSTER_USAGE_TIMEOUT"),
		StateChangeWaitTime: seconds("STATE_CHANGE_WAIT_TIME"),
		StateChangePollTime: seconds("STATE_CHANGE_POLL_TIME"),
		Workers:             viper.GetInt("WORKFLOW_WORKERS"),
	}
}

func loadInstanceConfig() InstanceConfig {
	return InstanceConfig{
		UsageTimeout:          seconds("USAGE_TIMEOUT"),
		PollerInterval:        seconds("POLLER_INTERVAL"),
		MaxAcceptedVolumeSize: viper.GetInt("MAX_ACCEPTED_VOLUME_SIZE"),
	}
}

func loadAgentConfig() AgentConfig {
	return AgentConfig{
		Port:            viper.GetInt("AGENT_PORT"),
		CallLowTimeout:  seconds("AGENT_CALL_LOW_TIMEOUT"),
		CallHighTimeout: seconds("AGENT_CALL_HIGH_TIMEOUT"),
		HeartbeatExpiry: seconds("AGENT_HEARTBEAT_EXPIRY"),
	}
}

func loadQuotaConfig() QuotaConfig {
	return QuotaConfig{
		MaxInstancesPerTenant: viper.GetInt("MAX_INSTANCES_PER_TENANT"),
		MaxVolumesPerTenant:   viper.GetInt("MAX_VOLUMES_PER_TENANT"),
		MaxBackupsPerTenant:   viper.GetInt("MAX_BACKUPS_PER_TENANT"),
		ReservationExpire:     seconds("RESERVATION_EXPIRE"),
		SweepInterval:         seconds("RESERVATION_SWEEP_INTERVAL"),
	}
}

func loadLogstashConfig() LogstashConfig {
	return LogstashConfig{
		Host: viper.GetString("LOGSTASH_HOST"),
		Port: viper.GetInt("LOGSTASH_PORT"),
	}
}

func loadOpenSearchConfig() OpenSearchConfig {
	return OpenSearchConfig{
		Addresses:          viper.GetStringSlice("OPENSEARCH_ADDRESSES"),
		Username:           viper.GetString("OPENSEARCH_USERNAME"),
		Password:           viper.GetString("OPENSEARCH_PASSWORD"),
		Index:              viper.GetString("OPENSEARCH_INDEX"),
		MinLevel:           viper.GetString("OPENSEARCH_MIN_LEVEL"),
		InsecureSkipVerify: viper.GetBool("OPENSEARCH_INSECURE_SKIP_VERIFY"),
	}
}

func (c *configureManager) GetWebConfig() WebConfig {
	return c.Web
}

func (c *configureManager) GetMysqlDBConfig() MysqlDBConfig {
	return c.Mysql
}

func (c *configureManager) GetLanguageConfig() LanguageConfig {
	return c.Language
}

func (c *configureManager) GetEndpointsConfig() APIEndpointsConfig {
	return c.APIEndpoints
}

func (c *configureManager) GetOpenStackApiConfig() OpenStackApiConfig {
	return c.OpenStackApi
}

func (c *configureManager) GetServiceCredentialsConfig() ServiceCredentialsConfig {
	return c.ServiceCredentials
}

func (c *configureManager) GetClusterConfig() ClusterConfig {
	return c.Cluster
}

func (c *configureManager) GetInstanceConfig() InstanceConfig {
	return c.Instance
}

func (c *configureManager) GetAgentConfig() AgentConfig {
	return c.Agent
}

func (c *configureManager) GetQuotaConfig() QuotaConfig {
	return c.Quota
}

func (c *configureManager) GetLogstashConfig() LogstashConfig {
	return c.Logstash
}

func (c *configureManager) GetOpenSearchConfig() OpenSearchConfig {
	return c.OpenSearch
}
