package topology

import (
	"github.com/vmindtech/vdb/pkg/errs"
)

// Member is one requested instance of a create or grow call.
type Member struct {
	Name             string
	Role             string
	FlavorID         string
	VolumeSize       int
	VolumeType       string
	NetworkID        string
	AvailabilityZone string
	RegionID         string
	RelatedTo        string
}

// Flavor is the part of a compute flavor the rules look at.
type Flavor struct {
	ID        string
	RAM       int
	Ephemeral int
}

func CheckSupported(opts Options, datastore string) error {
	if !opts.ClusterSupport {
		return errs.Validation(errs.ReasonDatastoreNotSupported,
			"clusters are not supported for datastore %s", datastore)
	}

	return nil
}

func CheckMemberCount(opts Options, count int) error {
	if count < opts.MinClusterMemberCount {
		return errs.Validation(errs.ReasonNumInstancesNotLargeEnough,
			"the number of instances for the cluster must be at least %d, got %d", opts.MinClusterMemberCount, count)
	}
	if opts.ClusterMemberCount != nil && count != *opts.ClusterMemberCount {
		return errs.Validation(errs.ReasonNumInstancesNotSupported,
			"the number of instances for the cluster must be %d, got %d", *opts.ClusterMemberCount, count)
	}

	return nil
}

// CheckGrowable refuses to add members to clusters of a fixed size.
func CheckGrowable(opts Options) error {
	if opts.ClusterMemberCount != nil {
		return errs.Validation(errs.ReasonActionNotSupported,
			"clusters of this datastore have a fixed size of %d", *opts.ClusterMemberCount)
	}

	return nil
}

// CheckHomogeneity requires one flavor and one volume size across members.
func CheckHomogeneity(members []Member) error {
	if len(members) == 0 {
		return nil
	}

	first := members[0]
	for _, m := range members[1:] {
		if m.FlavorID != first.FlavorID {
			return errs.Validation(errs.ReasonFlavorsNotEqual, "the flavor for each instance in a cluster must be the same")
		}
	}
	for _, m := range members[1:] {
		if m.VolumeSize != first.VolumeSize {
			return errs.Validation(errs.ReasonVolumeSizesNotEqual, "the volume size for each instance in a cluster must be the same")
		}
	}

	return nil
}

// CheckVolumes applies the volume rules to every member. flavor is the
// shared flavor of the members; maxSize of zero disables the size cap.
func CheckVolumes(opts Options, members []Member, flavor Flavor, maxSize int) error {
	for _, m := range members {
		if opts.VolumeSupport {
			if m.VolumeSize <= 0 {
				return errs.Validation(errs.ReasonVolumeSizeNotSpecified, "a volume size is required for each instance in the cluster")
			}
			if maxSize > 0 && m.VolumeSize > maxSize {
				return errs.Validation(errs.ReasonVolumeSizeExceeded,
					"volume size %dG exceeds the maximum of %dG", m.VolumeSize, maxSize)
			}
			continue
		}

		if m.VolumeSize > 0 {
			return errs.Validation(errs.ReasonVolumeNotSupported, "volumes are not supported for this datastore")
		}
		if opts.DevicePath != nil && *opts.DevicePath != "" && flavor.Ephemeral <= 0 {
			return errs.Validation(errs.ReasonLocalStorageNotSpecified,
				"local storage not specified in flavor %s", flavor.ID)
		}
	}

	return nil
}

// CommonNetwork returns the network every member declares, or "" when none
// declares one.
func CommonNetwork(members []Member) (string, error) {
	declared := ""
	seen := false
	for _, m := range members {
		if m.NetworkID != "" {
			seen = true
			declared = m.NetworkID
			break
		}
	}
	if !seen {
		return "", nil
	}

	for _, m := range members {
		if m.NetworkID != declared {
			return "", errs.Validation(errs.ReasonNetworksNotEqual, "all instances of a cluster must use the same network")
		}
	}

	return declared, nil
}

// Validate runs the create time rules over the member instances.
func Validate(opts Options, datastore string, members []Member, flavor Flavor, maxSize int) error {
	if err := CheckSupported(opts, datastore); err != nil {
		return err
	}
	if err := CheckMemberCount(opts, len(members)); err != nil {
		return err
	}
	if err := CheckHomogeneity(members); err != nil {
		return err
	}
	if err := CheckVolumes(opts, members, flavor, maxSize); err != nil {
		return err
	}
	_, err := CommonNetwork(members)

	return err
}

// TotalVolume sums the requested volume sizes in GB.
func TotalVolume(members []Member) int {
	total := 0
	for _, m := range members {
		total += m.VolumeSize
	}

	return total
}
