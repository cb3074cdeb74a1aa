// Package strategy holds the per datastore plug-ins that shape cluster
// workflows: which roles exist, how instances are grouped, how seeds are
// chosen and in which order nodes are bootstrapped, grown and shrunk.
package strategy

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vmindtech/vdb/internal/guestagent"
	"github.com/vmindtech/vdb/internal/model"
	"github.com/vmindtech/vdb/internal/topology"
	"github.com/vmindtech/vdb/pkg/poll"
)

// Node is a cluster member together with the client of its guest agent.
type Node struct {
	Instance *model.Instance
	Guest    guestagent.API
}

func (n Node) ID() string {
	return n.Instance.ID
}

func (n Node) IP() string {
	return n.Instance.PrimaryIP()
}

func (n Node) Role() string {
	return n.Instance.Role()
}

func (n Node) Shard() string {
	return n.Instance.Shard()
}

// Placement is one instance a strategy wants created.
type Placement struct {
	topology.Member
	Role       string
	ShardID    string
	ReplicaSet string
}

// Workflow is what the coordinator lends a strategy while an action runs.
type Workflow interface {
	Options() topology.Options
	// ClusterKey is the shared secret generated at create, empty otherwise.
	ClusterKey() string
	Logger() *logrus.Entry
	WaitForRunning(ctx context.Context, nodes ...Node) error
	WaitForShutdown(ctx context.Context, nodes ...Node) error
	Poll(ctx context.Context, cond poll.Condition) error
}

type Strategy interface {
	Name() string
	Managers() []string
	PermittedRoles() []string
	GrowPermittedRoles() []string

	PlanCreate(opts topology.Options, members []topology.Member) ([]Placement, error)
	PlanGrow(ctx context.Context, opts topology.Options, existing []Node, incoming []topology.Member) ([]Placement, error)
	PlanAddShard(ctx context.Context, opts topology.Options, existing []Node) ([]Placement, error)
	ShrinkPreconditions(ctx context.Context, existing []Node, targets []Node) error

	SelectSeeds(nodes []Node) []string
	BootstrapOrder(nodes []Node) []Node
	// UpgradeOrdering returns the sort key used to order a rolling upgrade.
	UpgradeOrdering(nodes []Node) func(Node) int

	Assemble(ctx context.Context, w Workflow, nodes []Node) error
	Grow(ctx context.Context, w Workflow, existing, added []Node) error
	Shrink(ctx context.Context, w Workflow, remaining, removed []Node) error
}

// each runs fn against every node concurrently and returns the first error.
func each(ctx context.Context, nodes []Node, fn func(ctx context.Context, n Node) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range nodes {
		n := n
		g.Go(func() error {
			return fn(gctx, n)
		})
	}

	return g.Wait()
}

func ips(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.IP())
	}

	return out
}

func withRole(nodes []Node, role string) []Node {
	var out []Node
	for _, n := range nodes {
		if n.Role() == role {
			out = append(out, n)
		}
	}

	return out
}

// byShard groups nodes by shard id, keeping the order shards first appear in.
func byShard(nodes []Node) ([]string, map[string][]Node) {
	var order []string
	groups := make(map[string][]Node)
	for _, n := range nodes {
		key := n.Shard()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], n)
	}

	return order, groups
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

func indexOrdering(nodes []Node) func(Node) int {
	pos := make(map[string]int, len(nodes))
	for i, n := range nodes {
		pos[n.ID()] = i
	}

	return func(n Node) int {
		return pos[n.ID()]
	}
}
