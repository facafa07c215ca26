package model

// BindingKind identifies which credential owner a binding comes from.
type BindingKind string

const (
	BindingKindAdmin    BindingKind = "admin"
	BindingKindSystem   BindingKind = "system"
	BindingKindAuthBook BindingKind = "authbook"
)

// BindingOrigin records how a credential reached the asset.
type BindingOrigin string

const (
	BindingOriginAsset BindingOrigin = "asset" // Attached to the asset itself.
	BindingOriginNode  BindingOrigin = "node"  // Inherited from a node or one of its ancestors.
)

// Platform is the operating system family of an asset. It decides which
// probe is used to verify a credential.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformUnix    Platform = "unix"
	PlatformMacOS   Platform = "macos"
	PlatformBSD     Platform = "bsd"
	PlatformWindows Platform = "windows"
	PlatformOther   Platform = "other"
)

// IsUnixLike reports whether the platform is reachable over SSH.
func (p Platform) IsUnixLike() bool {
	switch p {
	case PlatformLinux, PlatformUnix, PlatformMacOS, PlatformBSD:
		return true
	}
	return false
}

// IsWindows reports whether the platform is a Windows host.
func (p Platform) IsWindows() bool {
	return p == PlatformWindows
}

// ConnectivityStatus is the outcome of a single probe.
type ConnectivityStatus string

const (
	ConnectivityPending ConnectivityStatus = "pending"
	ConnectivitySuccess ConnectivityStatus = "success"
	ConnectivityFailure ConnectivityStatus = "failure"
)

// JobStatus is the lifecycle state of a probe batch.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusFinished JobStatus = "finished"
)
