package errs

// Topology
const (
	ReasonVolumeSizesNotEqual            = "ClusterVolumeSizesNotEqual"
	ReasonFlavorsNotEqual                = "ClusterFlavorsNotEqual"
	ReasonNetworksNotEqual               = "ClusterNetworksNotEqual"
	ReasonNetworkNotFound                = "NetworkNotFound"
	ReasonNumInstancesNotLargeEnough     = "ClusterNumInstancesNotLargeEnough"
	ReasonNumInstancesNotSupported       = "ClusterNumInstancesNotSupported"
	ReasonDatastoreNotSupported          = "ClusterDatastoreNotSupported"
	ReasonVolumeSizeNotSpecified         = "VolumeSizeNotSpecified"
	ReasonVolumeNotSupported             = "VolumeNotSupported"
	ReasonVolumeSizeExceeded             = "VolumeSizeExceeded"
	ReasonLocalStorageNotSpecified       = "LocalStorageNotSpecified"
	ReasonShrinkMustNotLeaveClusterEmpty = "ClusterShrinkMustNotLeaveClusterEmpty"
	ReasonShrinkInstanceInUse            = "ClusterShrinkInstanceInUse"
	ReasonClusterInstanceNotFound        = "ClusterInstanceNotFound"
	ReasonInvalidRole                    = "InvalidRole"
	ReasonDuplicateInstanceName          = "DuplicateInstanceName"
	ReasonUnknownRelation                = "UnknownRelation"
	ReasonActionNotSupported             = "ActionNotSupported"
	ReasonInvalidAction                  = "InvalidAction"
)

// Configuration groups
const (
	ReasonConfigurationDatastoreMismatch = "ConfigurationDatastoreMismatch"
	ReasonUnknownParameter               = "UnknownParameter"
	ReasonInvalidParameterType           = "InvalidParameterType"
	ReasonParameterOutOfRange            = "ParameterOutOfRange"
	ReasonConfigurationInUse             = "ConfigurationInUse"
)

const (
	ReasonClusterTaskConflict = "ClusterTaskConflict"
	ReasonGuestAgentError     = "GuestAgentError"
)
