// Package libvirt probes the libvirt daemon that multipass's libvirt
// driver runs instances on.
//
// Multipass owns the domains, so nothing here defines or changes them.
// The probe connects over the local Unix socket, reads the library and
// hypervisor versions and the host name, and disconnects:
//
//	info, err := libvirt.Probe(ctx, "/var/run/libvirt/libvirt-sock", 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(info.LibVersion, info.Hostname)
//
// The health endpoint and the doctor command run the probe only when a
// socket is configured.
package libvirt
