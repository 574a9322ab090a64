/*
 (c) Copyright [2024] The sfadmin Authors.
 Licensed under the Apache License, Version 2.0 (the "License");
 You may not use this file except in compliance with the License.
 You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// Package simulator is an in-process model of a cluster and its nodes. It
// serves the cluster and per-node JSON-RPC APIs through an http.RoundTripper
// and answers ipmitool and ping through a shell.Runner, so that every client
// and command can be tested without hardware.
package simulator

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	"github.com/solidfire/sfadmin/sfclusterops"
	"github.com/solidfire/sfadmin/sfclusterops/inventory"
	"github.com/solidfire/sfadmin/sfclusterops/util"
	"github.com/solidfire/sfadmin/sfclusterops/vlog"
)

// NodeSpec pins down one simulated node. Unset fields are generated.
type NodeSpec struct {
	MIP             string
	IPMIIP          string
	Pending         bool
	NodeID          int
	PendingNodeID   int
	NodeType        string
	Drives          int
	SoftwareVersion string
}

// Config drives the generation of the simulated cluster. The same Config
// always produces the same cluster.
type Config struct {
	Seed int64
	MVIP string
	SVIP string
	// Nodes replaces the generated nodes when set. Nodes are listed in
	// this order.
	Nodes         []NodeSpec
	ActiveNodes   int
	PendingNodes  int
	DrivesPerNode int

	Accounts          int
	VolumesPerAccount int
	DeletedVolumes    int
	AccessGroups      int
	ResolvedFaults    int
	UnhealthyFaults   int

	ClusterVersion        string
	PendingUpgradeVersion string
	APIVersion            float64

	Username     string
	Password     string
	IPMIUsername string
	IPMIPassword string

	Log *vlog.Printer
}

const (
	DefaultMVIP          = "10.0.0.100"
	DefaultSVIP          = "10.20.0.100"
	DefaultActiveNodes   = 4
	DefaultDrivesPerNode = 11
	DefaultVersion       = "9.0.0.1000"
)

func (cfg *Config) setDefaults() {
	if cfg.MVIP == "" {
		cfg.MVIP = DefaultMVIP
	}
	if cfg.SVIP == "" {
		cfg.SVIP = DefaultSVIP
	}
	if len(cfg.Nodes) == 0 && cfg.ActiveNodes == 0 {
		cfg.ActiveNodes = DefaultActiveNodes
	}
	if cfg.DrivesPerNode <= 0 {
		cfg.DrivesPerNode = DefaultDrivesPerNode
	}
	if cfg.ClusterVersion == "" {
		cfg.ClusterVersion = DefaultVersion
	}
	if cfg.APIVersion <= 0 {
		cfg.APIVersion = util.DefaultAPIVersion
	}
	if cfg.Username == "" {
		cfg.Username = util.DefaultUsername
	}
	if cfg.Password == "" {
		cfg.Password = util.DefaultPassword
	}
	if cfg.IPMIUsername == "" {
		cfg.IPMIUsername = util.DefaultIPMIUsername
	}
	if cfg.IPMIPassword == "" {
		cfg.IPMIPassword = util.DefaultIPMIPassword
	}
}

// DefaultConfig is a small healthy cluster with some accounts and volumes
func DefaultConfig(seed int64) Config {
	return Config{
		Seed:              seed,
		ActiveNodes:       DefaultActiveNodes,
		Accounts:          3,
		VolumesPerAccount: 2,
		DeletedVolumes:    1,
		AccessGroups:      1,
		ResolvedFaults:    2,
	}
}

// Simulator owns the whole simulated state. One mutex guards it and is held
// for the duration of every RPC, ipmitool or ping call.
type Simulator struct {
	cfg    Config
	log    vlog.Printer
	mu     sync.Mutex
	rng    *rand.Rand
	st     *clusterState
	clock  time.Time
	router *gin.Engine

	failures     []*failureState
	ipmiCommands [][]string
}

var ginModeOnce sync.Once

// New builds a simulator from cfg
func New(cfg Config) *Simulator {
	cfg.setDefaults()
	ginModeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })

	log := vlog.MakePrinter(logr.Discard(), nil)
	if cfg.Log != nil {
		log = cfg.Log.WithName("simulator")
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	clock := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(cfg.Seed%86400) * time.Second)
	s := &Simulator{
		cfg:   cfg,
		log:   log,
		rng:   rng,
		clock: clock,
	}
	s.st = generate(&s.cfg, rng, clock)
	s.router = s.newRouter()
	return s
}

// now advances the simulated clock by one second per call
func (s *Simulator) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// MVIP is the cluster management address
func (s *Simulator) MVIP() string {
	return s.cfg.MVIP
}

// ConnectionOptions are client options pointing at this simulator
func (s *Simulator) ConnectionOptions() sfclusterops.ConnectionOptions {
	return sfclusterops.ConnectionOptions{
		MVIP:       s.cfg.MVIP,
		Username:   s.cfg.Username,
		Password:   s.cfg.Password,
		APIVersion: util.DefaultAPIVersion,
		HTTPClient: s.HTTPClient(),
	}
}

// HTTPClient sends every request to the simulator instead of the network
func (s *Simulator) HTTPClient() *http.Client {
	return &http.Client{Transport: roundTripper{s}}
}

type roundTripper struct {
	s *Simulator
}

// RoundTrip refuses connections to unknown or powered-off hosts and serves
// everything else through the router.
func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.s.checkConnection(req.URL.Hostname(), req.URL.Port()); err != nil {
		return nil, err
	}
	rec := httptest.NewRecorder()
	rt.s.router.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func (s *Simulator) checkConnection(host, port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := strconv.Atoi(port)
	if host == s.cfg.MVIP && p == util.DefaultClusterPort {
		return nil
	}
	node := s.st.nodeByMIP(host)
	if node == nil {
		return fmt.Errorf("dial tcp %s:%s: connect: no route to host", host, port)
	}
	if !node.PoweredOn || p != util.DefaultNodePort {
		return fmt.Errorf("dial tcp %s:%s: connect: connection refused", host, port)
	}
	return nil
}

// Inventory lists the IPMI address of every simulated node
func (s *Simulator) Inventory() inventory.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := inventory.MakeInventory()
	for _, n := range s.st.Nodes {
		inv.Add(n.Name, n.MIP, n.IPMIIP)
	}
	return inv
}

// NodeCount returns the number of active and pending nodes
func (s *Simulator) NodeCount() (active, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.activeNodes()), len(s.st.pendingNodes())
}

// PoweredOn reports the chassis power of the node with the given MIP
func (s *Simulator) PoweredOn(mip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := s.st.nodeByMIP(mip)
	return node != nil && node.PoweredOn
}

// IPMICommands returns every ipmitool argv the simulator has answered
func (s *Simulator) IPMICommands() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.ipmiCommands...)
}
