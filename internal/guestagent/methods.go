package guestagent

const (
	// VersionCap is the newest contract version this client speaks.
	VersionCap = "1.4"

	servicePath = "/vdb.guestagent.v1.Agent/"
)

type method struct {
	name  string
	slow  bool
	since string
}

var (
	mGetStatus                 = method{name: "GetStatus", since: "1.0"}
	mRestart                   = method{name: "Restart", slow: true, since: "1.0"}
	mStopDB                    = method{name: "StopDB", slow: true, since: "1.0"}
	mStartDB                   = method{name: "StartDB", slow: true, since: "1.0"}
	mSetSeeds                  = method{name: "SetSeeds", since: "1.0"}
	mGetSeeds                  = method{name: "GetSeeds", since: "1.0"}
	mSetAutoBootstrap          = method{name: "SetAutoBootstrap", since: "1.0"}
	mStoreAdminCredentials     = method{name: "StoreAdminCredentials", since: "1.0"}
	mGetAdminCredentials       = method{name: "GetAdminCredentials", since: "1.0"}
	mClusterSecure             = method{name: "ClusterSecure", slow: true, since: "1.0"}
	mClusterComplete           = method{name: "ClusterComplete", slow: true, since: "1.0"}
	mNodeCleanupBegin          = method{name: "NodeCleanupBegin", since: "1.1"}
	mNodeCleanup               = method{name: "NodeCleanup", slow: true, since: "1.1"}
	mNodeDecommission          = method{name: "NodeDecommission", slow: true, since: "1.1"}
	mGrantReplicationPrivilege = method{name: "GrantReplicationPrivilege", since: "1.0"}
	mGetReplicaSetName         = method{name: "GetReplicaSetName", since: "1.2"}
	mIsShardActive             = method{name: "IsShardActive", since: "1.2"}
	mPrepPrimary               = method{name: "PrepPrimary", slow: true, since: "1.2"}
	mAddMembers                = method{name: "AddMembers", slow: true, since: "1.2"}
	mAddConfigServers          = method{name: "AddConfigServers", slow: true, since: "1.2"}
	mAddShard                  = method{name: "AddShard", slow: true, since: "1.2"}
	mRemoveShard               = method{name: "RemoveShard", slow: true, since: "1.2"}
	mCreateAdminUser           = method{name: "CreateAdminUser", since: "1.2"}
	mClusterMeet               = method{name: "ClusterMeet", since: "1.3"}
	mClusterAddSlots           = method{name: "ClusterAddSlots", since: "1.3"}
	mGetNodeIDForRemoval       = method{name: "GetNodeIDForRemoval", since: "1.3"}
	mRemoveNodes               = method{name: "RemoveNodes", slow: true, since: "1.3"}
	mUpdateOverrides           = method{name: "UpdateOverrides", since: "1.0"}
	mRemoveOverrides           = method{name: "RemoveOverrides", since: "1.0"}
	mGetOverrides              = method{name: "GetOverrides", since: "1.4"}
	mApplyConfiguration        = method{name: "ApplyConfiguration", slow: true, since: "1.0"}
	mResetConfiguration        = method{name: "ResetConfiguration", slow: true, since: "1.0"}
	mSaveConfiguration         = method{name: "SaveConfiguration", since: "1.0"}
	mDeleteConfiguration       = method{name: "DeleteConfiguration", since: "1.0"}
)

func (m method) fullName() string {
	return servicePath + m.name
}
