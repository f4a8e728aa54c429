// Package virt detects whether the host runs inside a container or a virtual
// machine and names the technology the way the service manager does.
package virt

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// None is reported on bare metal.
const None = ""

// HypervisorFunc reports whether a hypervisor is present and who made it.
type HypervisorFunc func() (present bool, vendor cpuid.Vendor)

// CPUHypervisor reads the hypervisor leaf of the running CPU.
func CPUHypervisor() (bool, cpuid.Vendor) {
	return cpuid.CPU.Supports(cpuid.HYPERVISOR), cpuid.CPU.HypervisorVendorID
}

var hypervisors = map[cpuid.Vendor]string{
	cpuid.KVM:    "kvm",
	cpuid.QEMU:   "qemu",
	cpuid.MSVM:   "microsoft",
	cpuid.VMware: "vmware",
	cpuid.XenHVM: "xen",
	cpuid.Bhyve:  "bhyve",
	cpuid.QNX:    "qnx",
	cpuid.ACRN:   "acrn",
	cpuid.Apple:  "apple",
}

// DMI vendor prefixes, checked in order.
var dmiVendors = []struct {
	prefix string
	id     string
}{
	{"KVM", "kvm"},
	{"Amazon EC2", "amazon"},
	{"QEMU", "qemu"},
	{"VMware", "vmware"},
	{"VMW", "vmware"},
	{"innotek GmbH", "oracle"},
	{"VirtualBox", "oracle"},
	{"Xen", "xen"},
	{"Bochs", "bochs"},
	{"Parallels", "parallels"},
	{"BHYVE", "bhyve"},
	{"Hyper-V", "microsoft"},
}

var dmiFiles = []string{
	"sys/class/dmi/id/product_name",
	"sys/class/dmi/id/sys_vendor",
	"sys/class/dmi/id/board_vendor",
	"sys/class/dmi/id/bios_vendor",
}

// Detector finds the virtualization technology once and caches the answer.
type Detector struct {
	root       string
	hypervisor HypervisorFunc

	once sync.Once
	id   string
}

// NewDetector creates a Detector for the running host.
func NewDetector() *Detector {
	return NewDetectorAt("/", CPUHypervisor)
}

// NewDetectorAt creates a Detector that reads host files below root.
func NewDetectorAt(root string, hypervisor HypervisorFunc) *Detector {
	return &Detector{root: root, hypervisor: hypervisor}
}

// ID returns the detected technology, or None.
func (d *Detector) ID() string {
	d.once.Do(func() {
		if id := d.container(); id != None {
			d.id = id
			return
		}
		d.id = d.vm()
	})
	return d.id
}

func (d *Detector) path(p string) string {
	return filepath.Join(d.root, p)
}

func (d *Detector) read(p string) (string, bool) {
	data, err := os.ReadFile(d.path(p))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func (d *Detector) exists(p string) bool {
	_, err := os.Stat(d.path(p))
	return err == nil
}

func (d *Detector) container() string {
	if id, ok := d.read("run/systemd/container"); ok && id != "" {
		return id
	}

	if environ, err := os.ReadFile(d.path("proc/1/environ")); err == nil {
		for _, kv := range bytes.Split(environ, []byte{0}) {
			if v, ok := bytes.CutPrefix(kv, []byte("container=")); ok && len(v) > 0 {
				return string(v)
			}
		}
	}

	switch {
	case d.exists("proc/vz") && !d.exists("proc/bc"):
		return "openvz"
	case d.exists("run/.containerenv"):
		return "podman"
	case d.exists(".dockerenv"):
		return "docker"
	}
	return None
}

func (d *Detector) vm() string {
	if d.hypervisor != nil {
		if present, vendor := d.hypervisor(); present {
			if id, ok := hypervisors[vendor]; ok {
				return id
			}
			return "other"
		}
	}

	for _, f := range dmiFiles {
		value, ok := d.read(f)
		if !ok {
			continue
		}
		for _, v := range dmiVendors {
			if strings.HasPrefix(value, v.prefix) {
				return v.id
			}
		}
	}

	// Paravirtualized Xen guests have neither cpuid nor DMI hints.
	if caps, ok := d.read("proc/xen/capabilities"); ok && !strings.Contains(caps, "control_d") {
		return "xen"
	}
	return None
}
