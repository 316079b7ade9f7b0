// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/reachability/internal/errors"
)

const sampleHCL = `
schema_version = "1.0"

device "fw" {
  interface "inside" {
    ipv4     = ["10.0.0.1/24"]
    acl_in   = "FROM-INSIDE"
  }
  interface "outside" {
    ipv4     = ["198.51.100.1/30"]
    stateful = true
  }

  acl "FROM-INSIDE" {
    line "no-telnet" {
      action   = "deny"
      protocol = ["tcp"]
      dst_port = ["23"]
    }
    line "any" {
      action = "permit"
      src_ip = ["10.0.0.0/24"]
    }
  }

  nat_pool "pub" {
    range = "203.0.113.10-203.0.113.20"
  }

  nat "hide" {
    type          = "snat"
    out_interface = "outside"
    pool          = "pub"
    match {
      src_ip = ["10.0.0.0/24"]
    }
  }

  route "0.0.0.0/0" {
    next_hop = "198.51.100.2"
  }
}

device "isp" {
  interface "cust" {
    ipv4 = ["198.51.100.2/30"]
  }
  route "203.0.113.0/24" {
    next_hop = "198.51.100.1"
  }
}

link {
  node1  = "fw"
  iface1 = "outside"
  node2  = "isp"
  iface2 = "cust"
}
`

const sampleYAML = `
schema_version: "1.0"
devices:
  - hostname: fw
    interfaces:
      - name: inside
        ipv4: ["10.0.0.1/24"]
        acl_in: FROM-INSIDE
      - name: outside
        ipv4: ["198.51.100.1/30"]
        stateful: true
    acls:
      - name: FROM-INSIDE
        lines:
          - name: no-telnet
            action: deny
            protocol: [tcp]
            dst_port: ["23"]
          - name: any
            action: permit
            src_ip: ["10.0.0.0/24"]
    nat_pools:
      - name: pub
        range: 203.0.113.10-203.0.113.20
    nat:
      - name: hide
        type: snat
        out_interface: outside
        pool: pub
        match:
          src_ip: ["10.0.0.0/24"]
    routes:
      - prefix: 0.0.0.0/0
        next_hop: 198.51.100.2
  - hostname: isp
    interfaces:
      - name: cust
        ipv4: ["198.51.100.2/30"]
    routes:
      - prefix: 203.0.113.0/24
        next_hop: 198.51.100.1
links:
  - node1: fw
    iface1: outside
    node2: isp
    iface2: cust
`

var cmpOpts = cmpopts.EquateEmpty()

func TestLoadHCL(t *testing.T) {
	net, err := LoadHCL([]byte(sampleHCL), "sample.hcl")
	require.NoError(t, err)

	require.Len(t, net.Devices, 2)
	fw, ok := net.Device("fw")
	require.True(t, ok)
	assert.Len(t, fw.Interfaces, 2)
	assert.Equal(t, DefaultVRF, fw.Interfaces[0].VRFName())

	acl, ok := fw.ACL("FROM-INSIDE")
	require.True(t, ok)
	assert.Equal(t, ActionDeny, acl.Lines[0].Action)
	assert.Equal(t, []string{"23"}, acl.Lines[0].DstPort)

	require.Len(t, fw.NAT, 1)
	require.NotNil(t, fw.NAT[0].Match)
	assert.Equal(t, []string{"10.0.0.0/24"}, fw.NAT[0].Match.SrcIP)

	assert.Equal(t, []Link{{Node1: "fw", Iface1: "outside", Node2: "isp", Iface2: "cust"}}, net.Links)
}

func TestLoadFormatsAgree(t *testing.T) {
	fromHCL, err := LoadHCL([]byte(sampleHCL), "sample.hcl")
	require.NoError(t, err)
	fromYAML, err := LoadYAML([]byte(sampleYAML))
	require.NoError(t, err)

	if diff := cmp.Diff(fromHCL, fromYAML, cmpOpts); diff != "" {
		t.Errorf("HCL and YAML snapshots differ (-hcl +yaml):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	want, err := LoadHCL([]byte(sampleHCL), "sample.hcl")
	require.NoError(t, err)

	for _, name := range []string{"net.hcl", "net.yaml", "net.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveFile(want, path))

			got, err := LoadFile(path)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got, cmpOpts); diff != "" {
				t.Errorf("round trip through %s changed the snapshot:\n%s", name, diff)
			}
		})
	}
}

func TestLoadFile_UnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.conf")
	require.NoError(t, os.WriteFile(path, []byte(sampleHCL), 0o644))
	net, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, net.Devices, 2)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.hcl"))
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestGenerateHCL(t *testing.T) {
	net, err := LoadHCL([]byte(sampleHCL), "sample.hcl")
	require.NoError(t, err)

	out, err := GenerateHCL(net)
	require.NoError(t, err)
	assert.Contains(t, string(out), `device "fw" {`)
	assert.Contains(t, string(out), `nat_pool "pub" {`)

	back, err := LoadHCL(out, "generated.hcl")
	require.NoError(t, err)
	if diff := cmp.Diff(net, back, cmpOpts); diff != "" {
		t.Errorf("GenerateHCL round trip (-want +got):\n%s", diff)
	}
}

func TestLoad_StrictVersion(t *testing.T) {
	src := strings.Replace(sampleHCL, `schema_version = "1.0"`, `schema_version = "0.9"`, 1)
	path := filepath.Join(t.TempDir(), "old.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	_, err := LoadFileWithOptions(path, LoadOptions{StrictVersion: true})
	assert.Error(t, err)
	_, err = LoadFileWithOptions(path, LoadOptions{})
	assert.NoError(t, err)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	src := strings.Replace(sampleHCL, `acl_in   = "FROM-INSIDE"`, `acl_in   = "MISSING"`, 1)
	_, err := LoadHCL([]byte(src), "bad.hcl")
	require.Error(t, err)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
	assert.Contains(t, err.Error(), `undefined acl "MISSING"`)
}

func TestClone(t *testing.T) {
	net, err := LoadHCL([]byte(sampleHCL), "sample.hcl")
	require.NoError(t, err)

	c := net.Clone()
	if diff := cmp.Diff(net, c, cmpOpts); diff != "" {
		t.Fatalf("clone differs:\n%s", diff)
	}
	c.Devices[0].Interfaces[0].IPv4[0] = "10.9.9.9/24"
	assert.Equal(t, "10.0.0.1/24", net.Devices[0].Interfaces[0].IPv4[0])
	assert.Nil(t, (*Network)(nil).Clone())
}

func TestVRFNames(t *testing.T) {
	d := Device{
		Hostname:   "r1",
		VRFs:       []VRF{{Name: "mgmt"}},
		Interfaces: []Interface{{Name: "eth0"}, {Name: "eth1", VRF: "cust"}},
	}
	assert.Equal(t, []string{"default", "mgmt", "cust"}, d.VRFNames())
}
