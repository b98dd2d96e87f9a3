// Package vfs is the sandbox's virtual filesystem and the provisioner that
// materializes manifests into it.
//
// Each sandbox owns one FS. The embedded engine reads and writes it through
// host bindings; the Provisioner rewrites the project tree from the latest
// manifest before every script run. Mounting is idempotent: the same
// manifest mounted twice yields the same Snapshot and Digest.
package vfs
