// Package vm provides domain queries and changes used by the shell's
// domain commands.
//
// The main operations are:
//   - Lookup: resolve a domain by id, uuid or name
//   - ListDomains / GetDomainInfo: summaries for list and dominfo
//   - SetVCPUs, SetMemory, SetAutostart, Undefine, DumpXML
//   - Migrate: run a migration job with abort, suspend-on-timeout and
//     progress reporting
//
// All functions accept a consumer-side LibvirtClient interface, which
// *libvirt.Libvirt satisfies.
package vm
