package strategy

import (
	"github.com/google/uuid"

	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

// memberGroup is a set of incoming members that belong together. Loose
// marks a single member that neither relates to nor is related by another.
type memberGroup struct {
	key     string
	members []topology.Member
	loose   bool
}

func roleOf(m topology.Member) string {
	if m.Role == "" {
		return constants.RoleMember
	}

	return m.Role
}

// checkGrow gates PlanGrow of the strategies whose cluster size is the
// member count; mongodb sizes each shard instead.
func checkGrow(opts topology.Options, incoming []topology.Member, permitted []string) error {
	if err := topology.CheckGrowable(opts); err != nil {
		return err
	}

	return checkIncoming(incoming, permitted)
}

// checkIncoming rejects unknown roles, duplicate names and relations that do
// not point at another incoming member.
func checkIncoming(incoming []topology.Member, permitted []string) error {
	names := make(map[string]bool, len(incoming))
	for _, m := range incoming {
		if !contains(permitted, roleOf(m)) {
			return errs.Validation(errs.ReasonInvalidRole, "role %q is not permitted here", m.Role)
		}
		if m.Name == "" {
			continue
		}
		if names[m.Name] {
			return errs.Validation(errs.ReasonDuplicateInstanceName, "instance name %q is used more than once", m.Name)
		}
		names[m.Name] = true
	}

	for _, m := range incoming {
		if m.RelatedTo != "" && !names[m.RelatedTo] {
			return errs.Validation(errs.ReasonUnknownRelation, "related_to %q does not name an instance of the request", m.RelatedTo)
		}
	}

	return nil
}

// groupMembers groups incoming members of role member by relation: a member
// with related_to joins the group of that name, a member others relate to
// heads its own group.
func groupMembers(incoming []topology.Member) []memberGroup {
	referenced := make(map[string]bool)
	for _, m := range incoming {
		if m.RelatedTo != "" {
			referenced[m.RelatedTo] = true
		}
	}

	var order []string
	groups := make(map[string]*memberGroup)
	for _, m := range incoming {
		if roleOf(m) != constants.RoleMember {
			continue
		}

		key := m.RelatedTo
		loose := false
		if key == "" {
			key = m.Name
			loose = !referenced[m.Name]
		}
		if loose {
			key = "#" + uuid.NewString()
		}

		g, ok := groups[key]
		if !ok {
			g = &memberGroup{key: key, loose: loose}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, m)
	}

	out := make([]memberGroup, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}

	return out
}

func newShardID() string {
	return uuid.New().String()
}
