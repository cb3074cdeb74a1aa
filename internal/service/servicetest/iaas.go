// Package servicetest provides in-memory compute, volume, network and
// identity services for service tests.
package servicetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vmindtech/vdb/internal/dto/request"
	"github.com/vmindtech/vdb/internal/dto/resource"
	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/pkg/constants"
	"github.com/vmindtech/vdb/pkg/errs"
)

// Compute keeps servers in memory. New servers are ACTIVE at once with a
// 10.0.0.N address on the network "private".
type Compute struct {
	mu      sync.Mutex
	servers map[string]resource.Server
	groups  map[string]resource.ServerGroup
	flavors map[string]resource.Flavor
	created []request.CreateServerRequest
	next    int

	// OnCreate runs after a server is stored, with the instance id from its
	// metadata.
	OnCreate  func(instanceID string, server resource.Server)
	OnRebuild func(serverID, imageID string)
	// Status, when set, is the status new servers start with.
	Status string
	Fail   map[string]error
	// after holds how many calls of a method succeed before Fail applies.
	after map[string]int
	calls map[string]int
}

var _ service.IComputeService = (*Compute)(nil)

func NewCompute() *Compute {
	return &Compute{
		servers: make(map[string]resource.Server),
		groups:  make(map[string]resource.ServerGroup),
		flavors: map[string]resource.Flavor{
			"small": {ID: "small", Name: "small", RAM: 2048, VCPUs: 1, Disk: 20},
			"large": {ID: "large", Name: "large", RAM: 8192, VCPUs: 4, Disk: 80},
		},
		Fail:  make(map[string]error),
		after: make(map[string]int),
		calls: make(map[string]int),
	}
}

func (c *Compute) fail(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[method]++
	if n, ok := c.after[method]; ok && c.calls[method] <= n {
		return nil
	}

	return c.Fail[method]
}

// Calls reports how many times method was called.
func (c *Compute) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls[method]
}

// SetFailAfter lets the next n calls of method succeed and fails every call
// after them with err.
func (c *Compute) SetFailAfter(method string, n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Fail[method] = err
	c.after[method] = n
	c.calls[method] = 0
}

func (c *Compute) SetFail(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Fail[method] = err
}

func (c *Compute) AddFlavor(f resource.Flavor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.flavors[f.ID] = f
}

func (c *Compute) GetFlavor(_ context.Context, flavorID string) (resource.Flavor, error) {
	if err := c.fail("GetFlavor"); err != nil {
		return resource.Flavor{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flavors[flavorID]
	if !ok {
		return resource.Flavor{}, errs.NotFound("flavor %s not found", flavorID)
	}

	return f, nil
}

func (c *Compute) CreateServer(_ context.Context, req request.CreateServerRequest) (resource.Server, error) {
	if err := c.fail("CreateServer"); err != nil {
		return resource.Server{}, err
	}

	c.mu.Lock()
	c.next++
	status := c.Status
	if status == "" {
		status = constants.ServerStatusActive
	}
	server := resource.Server{
		ID:     uuid.NewString(),
		Name:   req.Server.Name,
		Status: status,
		Addresses: map[string][]resource.Address{
			"private": {{Addr: fmt.Sprintf("10.0.0.%d", c.next), Version: 4}},
		},
	}
	c.servers[server.ID] = server
	c.created = append(c.created, req)
	hook := c.OnCreate
	c.mu.Unlock()

	if hook != nil {
		hook(req.Server.Metadata["instance_id"], server)
	}

	return server, nil
}

// Created returns the create requests in the order they arrived.
func (c *Compute) Created() []request.CreateServerRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]request.CreateServerRequest(nil), c.created...)
}

func (c *Compute) GetServer(_ context.Context, serverID string) (resource.Server, error) {
	if err := c.fail("GetServer"); err != nil {
		return resource.Server{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	server, ok := c.servers[serverID]
	if !ok {
		return resource.Server{}, errs.NotFound("server %s not found", serverID)
	}

	return server, nil
}

func (c *Compute) SetServerStatus(serverID, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if server, ok := c.servers[serverID]; ok {
		server.Status = status
		c.servers[serverID] = server
	}
}

func (c *Compute) DeleteServer(_ context.Context, serverID string) error {
	if err := c.fail("DeleteServer"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.servers, serverID)

	return nil
}

func (c *Compute) RebuildServer(_ context.Context, serverID, imageID string) error {
	if err := c.fail("RebuildServer"); err != nil {
		return err
	}

	c.mu.Lock()
	_, ok := c.servers[serverID]
	hook := c.OnRebuild
	c.mu.Unlock()

	if !ok {
		return errs.NotFound("server %s not found", serverID)
	}
	if hook != nil {
		hook(serverID, imageID)
	}

	return nil
}

func (c *Compute) CreateServerGroup(_ context.Context, req request.CreateServerGroupRequest) (resource.ServerGroup, error) {
	if err := c.fail("CreateServerGroup"); err != nil {
		return resource.ServerGroup{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	group := resource.ServerGroup{
		ID:     uuid.NewString(),
		Name:   req.ServerGroup.Name,
		Policy: req.ServerGroup.Policy,
	}
	c.groups[group.ID] = group

	return group, nil
}

func (c *Compute) DeleteServerGroup(_ context.Context, serverGroupID string) error {
	if err := c.fail("DeleteServerGroup"); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.groups, serverGroupID)

	return nil
}

func (c *Compute) ServerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.servers)
}

func (c *Compute) ServerGroups() []resource.ServerGroup {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]resource.ServerGroup, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}

	return out
}

// Volume keeps volumes in memory; they are available as soon as created.
type Volume struct {
	mu      sync.Mutex
	volumes map[string]resource.Volume
	Fail    map[string]error
}

var _ service.IVolumeService = (*Volume)(nil)

func NewVolume() *Volume {
	return &Volume{
		volumes: make(map[string]resource.Volume),
		Fail:    make(map[string]error),
	}
}

func (v *Volume) SetFail(method string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.Fail[method] = err
}

func (v *Volume) CreateVolume(_ context.Context, req request.CreateVolumeRequest) (resource.Volume, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.Fail["CreateVolume"]; err != nil {
		return resource.Volume{}, err
	}

	vol := resource.Volume{
		ID:     uuid.NewString(),
		Name:   req.Volume.Name,
		Status: constants.VolumeStatusAvailable,
		Size:   req.Volume.Size,
	}
	v.volumes[vol.ID] = vol

	return vol, nil
}

func (v *Volume) GetVolume(_ context.Context, volumeID string) (resource.Volume, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	vol, ok := v.volumes[volumeID]
	if !ok {
		return resource.Volume{}, errs.NotFound("volume %s not found", volumeID)
	}

	return vol, nil
}

func (v *Volume) DeleteVolume(_ context.Context, volumeID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.Fail["DeleteVolume"]; err != nil {
		return err
	}
	delete(v.volumes, volumeID)

	return nil
}

func (v *Volume) Count() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.volumes)
}

// Network knows a fixed set of network ids.
type Network struct {
	Known map[string]bool
}

var _ service.INetworkService = (*Network)(nil)

func NewNetwork(ids ...string) *Network {
	n := &Network{Known: make(map[string]bool, len(ids))}
	for _, id := range ids {
		n.Known[id] = true
	}

	return n
}

func (n *Network) GetNetwork(_ context.Context, networkID string) (resource.Network, error) {
	if !n.Known[networkID] {
		return resource.Network{}, errs.NotFound("network %s not found", networkID)
	}

	return resource.Network{ID: networkID, Name: networkID, Status: "ACTIVE"}, nil
}

// Identity accepts Token for any project listed in Projects.
type Identity struct {
	Token    string
	Projects map[string]bool
}

var _ service.IIdentityService = (*Identity)(nil)

func (i *Identity) CheckAuthToken(_ context.Context, authToken, projectID string) error {
	if authToken != i.Token || !i.Projects[projectID] {
		return errs.Unauthorized("token is not valid for project %s", projectID)
	}

	return nil
}

func (i *Identity) ServiceToken(context.Context) (string, error) {
	return i.Token, nil
}
