package model

// All lists every persisted model, in dependency order, for schema migration.
func All() []interface{} {
	return []interface{}{
		&Datastore{},
		&DatastoreVersion{},
		&DatastoreConfigurationParameter{},
		&Configuration{},
		&ConfigurationParameter{},
		&Cluster{},
		&Instance{},
		&Quota{},
		&QuotaUsage{},
		&Reservation{},
		&AgentHeartbeat{},
		&Capability{},
		&CapabilityOverride{},
		&AuditLog{},
		&Fault{},
		&ClusterResource{},
	}
}
