// Package guestagenttest provides an in-memory guest agent that records the
// calls placed against it.
package guestagenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vmindtech/vdb/internal/guestagent"
	"github.com/vmindtech/vdb/internal/model"
)

type Call struct {
	Instance string
	Method   string
	Args     []interface{}
}

func (c Call) String() string {
	return fmt.Sprintf("%s:%s", c.Instance, c.Method)
}

// Recorder collects calls across many fake guests in the order they happened.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) add(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, c)
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Call(nil), r.calls...)
}

// Methods returns the methods placed against one instance, in order.
func (r *Recorder) Methods(instance string) []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Instance == instance {
			out = append(out, c.Method)
		}
	}

	return out
}

// Instances returns, in order, the instances that received method.
func (r *Recorder) Instances(method string) []string {
	var out []string
	for _, c := range r.Calls() {
		if c.Method == method {
			out = append(out, c.Instance)
		}
	}

	return out
}

func (r *Recorder) Count(method string) int {
	return len(r.Instances(method))
}

// Find returns the calls of method against instance.
func (r *Recorder) Find(instance, method string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Instance == instance && c.Method == method {
			out = append(out, c)
		}
	}

	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = nil
}

// Fake answers every call from its fields. Fail makes a method return the
// given error.
type Fake struct {
	ID  string
	Rec *Recorder

	mu           sync.Mutex
	Status       string
	Seeds        []string
	Creds        guestagent.Credentials
	ReplicaSet   string
	ShardActive  bool
	NodeID       string
	Overrides    map[string]interface{}
	NeedsRestart bool
	Fail         map[string]error
}

var _ guestagent.API = (*Fake)(nil)

func NewFake(id string, rec *Recorder) *Fake {
	return &Fake{
		ID:     id,
		Rec:    rec,
		Status: "RUNNING",
		Fail:   make(map[string]error),
	}
}

func (f *Fake) record(method string, args ...interface{}) error {
	if f.Rec != nil {
		f.Rec.add(Call{Instance: f.ID, Method: method, Args: args})
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.Fail[method]
}

func (f *Fake) SetFail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Fail[method] = err
}

func (f *Fake) SetStatus(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Status = status
}

func (f *Fake) GetStatus(context.Context) (string, error) {
	err := f.record("GetStatus")

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.Status, err
}

func (f *Fake) Restart(context.Context) error {
	return f.record("Restart")
}

func (f *Fake) StopDB(context.Context) error {
	err := f.record("StopDB")
	if err == nil {
		f.SetStatus("SHUTDOWN")
	}

	return err
}

func (f *Fake) StartDB(context.Context) error {
	err := f.record("StartDB")
	if err == nil {
		f.SetStatus("RUNNING")
	}

	return err
}

func (f *Fake) SetSeeds(_ context.Context, seeds []string) error {
	err := f.record("SetSeeds", seeds)
	if err == nil {
		f.mu.Lock()
		f.Seeds = append([]string(nil), seeds...)
		f.mu.Unlock()
	}

	return err
}

func (f *Fake) GetSeeds(context.Context) ([]string, error) {
	err := f.record("GetSeeds")

	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.Seeds...), err
}

func (f *Fake) SetAutoBootstrap(_ context.Context, enabled bool) error {
	return f.record("SetAutoBootstrap", enabled)
}

func (f *Fake) StoreAdminCredentials(_ context.Context, creds guestagent.Credentials) error {
	err := f.record("StoreAdminCredentials", creds)
	if err == nil {
		f.mu.Lock()
		f.Creds = creds
		f.mu.Unlock()
	}

	return err
}

func (f *Fake) GetAdminCredentials(context.Context) (guestagent.Credentials, error) {
	err := f.record("GetAdminCredentials")

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.Creds, err
}

func (f *Fake) ClusterSecure(_ context.Context, key string) (guestagent.Credentials, error) {
	err := f.record("ClusterSecure", key)
	creds := guestagent.Credentials{Username: "os_admin", Password: key}

	f.mu.Lock()
	f.Creds = creds
	f.mu.Unlock()

	return creds, err
}

func (f *Fake) ClusterComplete(context.Context) error {
	return f.record("ClusterComplete")
}

func (f *Fake) NodeCleanupBegin(context.Context) error {
	return f.record("NodeCleanupBegin")
}

func (f *Fake) NodeCleanup(context.Context) error {
	return f.record("NodeCleanup")
}

func (f *Fake) NodeDecommission(context.Context) error {
	err := f.record("NodeDecommission")
	if err == nil {
		f.SetStatus("SHUTDOWN")
	}

	return err
}

func (f *Fake) GrantReplicationPrivilege(_ context.Context, user string) error {
	return f.record("GrantReplicationPrivilege", user)
}

func (f *Fake) GetReplicaSetName(context.Context) (string, error) {
	err := f.record("GetReplicaSetName")

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ReplicaSet, err
}

func (f *Fake) IsShardActive(_ context.Context, replicaSet string) (bool, error) {
	err := f.record("IsShardActive", replicaSet)

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ShardActive, err
}

func (f *Fake) PrepPrimary(context.Context) error {
	return f.record("PrepPrimary")
}

func (f *Fake) AddMembers(_ context.Context, ips []string) error {
	return f.record("AddMembers", ips)
}

func (f *Fake) AddConfigServers(_ context.Context, ips []string) error {
	return f.record("AddConfigServers", ips)
}

func (f *Fake) AddShard(_ context.Context, replicaSet, ip string) error {
	err := f.record("AddShard", replicaSet, ip)
	if err == nil {
		f.mu.Lock()
		f.ShardActive = true
		f.mu.Unlock()
	}

	return err
}

func (f *Fake) RemoveShard(_ context.Context, replicaSet string) error {
	err := f.record("RemoveShard", replicaSet)
	if err == nil {
		f.mu.Lock()
		f.ShardActive = false
		f.mu.Unlock()
	}

	return err
}

func (f *Fake) CreateAdminUser(_ context.Context, password string) error {
	return f.record("CreateAdminUser", password)
}

func (f *Fake) ClusterMeet(_ context.Context, ip string) error {
	return f.record("ClusterMeet", ip)
}

func (f *Fake) ClusterAddSlots(_ context.Context, first, last int) error {
	return f.record("ClusterAddSlots", first, last)
}

func (f *Fake) GetNodeIDForRemoval(context.Context) (string, error) {
	err := f.record("GetNodeIDForRemoval")

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.NodeID, err
}

func (f *Fake) RemoveNodes(_ context.Context, nodeIDs []string) error {
	return f.record("RemoveNodes", nodeIDs)
}

func (f *Fake) UpdateOverrides(_ context.Context, overrides map[string]interface{}) error {
	err := f.record("UpdateOverrides", overrides)
	if err == nil {
		f.mu.Lock()
		f.Overrides = overrides
		f.mu.Unlock()
	}

	return err
}

func (f *Fake) RemoveOverrides(context.Context) error {
	err := f.record("RemoveOverrides")
	if err == nil {
		f.mu.Lock()
		f.Overrides = nil
		f.mu.Unlock()
	}

	return err
}

func (f *Fake) GetOverrides(context.Context) (map[string]interface{}, error) {
	err := f.record("GetOverrides")

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.Overrides, err
}

func (f *Fake) ApplyConfiguration(_ context.Context, group guestagent.Group) (bool, error) {
	err := f.record("ApplyConfiguration", group)

	f.mu.Lock()
	defer f.mu.Unlock()

	return !f.NeedsRestart, err
}

func (f *Fake) ResetConfiguration(_ context.Context, groupID string) (bool, error) {
	err := f.record("ResetConfiguration", groupID)

	f.mu.Lock()
	defer f.mu.Unlock()

	return !f.NeedsRestart, err
}

func (f *Fake) SaveConfiguration(_ context.Context, group guestagent.Group) error {
	err := f.record("SaveConfiguration", group)
	if err == nil {
		f.mu.Lock()
		f.Overrides = group.Values
		f.mu.Unlock()
	}

	return err
}

func (f *Fake) DeleteConfiguration(context.Context) error {
	err := f.record("DeleteConfiguration")
	if err == nil {
		f.mu.Lock()
		f.Overrides = nil
		f.mu.Unlock()
	}

	return err
}

// Factory serves fakes keyed by instance id, creating them on first use.
type Factory struct {
	Rec *Recorder

	mu     sync.Mutex
	guests map[string]*Fake
}

var _ guestagent.Factory = (*Factory)(nil)

func NewFactory() *Factory {
	return &Factory{Rec: &Recorder{}, guests: make(map[string]*Fake)}
}

func (f *Factory) Get(instanceID string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.guests[instanceID]
	if !ok {
		g = NewFake(instanceID, f.Rec)
		f.guests[instanceID] = g
	}

	return g
}

func (f *Factory) Guest(instance *model.Instance) (guestagent.API, error) {
	return f.Get(instance.ID), nil
}

func (f *Factory) Forget(string) {}
