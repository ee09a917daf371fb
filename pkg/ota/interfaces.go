package ota

import (
	"context"

	"github.com/openfabric-io/devicecore/pkg/fabric"
	"github.com/openfabric-io/devicecore/pkg/ota/wire"
)

// SessionHandle is an opaque established CASE session usable to reach a
// provider. Its concrete type is owned by whatever SessionInitiator
// implementation the embedding node provides.
type SessionHandle interface {
	// Close releases the session. It is safe to call more than once.
	Close()
}

// SessionInitiator establishes a CASE session to a provider node on a given
// fabric. The requestor never manages sessions directly; it asks for one
// each time it needs to talk to a provider.
type SessionInitiator interface {
	EstablishSession(ctx context.Context, fabricIndex fabric.FabricIndex, nodeID fabric.NodeID) (SessionHandle, error)
}

// ProviderClient issues the three OTA Provider cluster commands over an
// established session.
type ProviderClient interface {
	QueryImage(ctx context.Context, sess SessionHandle, req wire.QueryImageRequest) (*wire.QueryImageResponse, error)
	ApplyUpdateRequest(ctx context.Context, sess SessionHandle, req wire.ApplyUpdateRequest) (*wire.ApplyUpdateResponse, error)
	NotifyUpdateApplied(ctx context.Context, sess SessionHandle, req wire.NotifyUpdateAppliedRequest) error
}

// DownloadStateReason qualifies a DownloaderDelegate state transition.
type DownloadStateReason int

const (
	DownloadStateReasonUnknown DownloadStateReason = iota
	DownloadStateReasonComplete
	DownloadStateReasonConnectionLost
	DownloadStateReasonInvalidURI
	DownloadStateReasonUserCancelled
)

// DownloadState is the lifecycle state a Downloader reports to its
// delegate.
type DownloadState int

const (
	DownloadStateNotStarted DownloadState = iota
	DownloadStateInProgress
	DownloadStateComplete
	DownloadStateFailed
)

// DownloaderDelegate receives callbacks from a Downloader. The requestor
// implements this interface to drive its own state machine from BDX
// transfer events.
type DownloaderDelegate interface {
	OnDownloadStateChanged(state DownloadState, reason DownloadStateReason)
	OnProgress(percent uint8)
	OnDownloadTimeout()
}

// Downloader performs the BDX (or equivalent) bulk transfer of an update
// image. Implementations report progress and completion through the
// delegate registered with SetStateDelegate.
type Downloader interface {
	SetStateDelegate(d DownloaderDelegate)
	Begin(ctx context.Context, uri string, updateToken []byte, targetVersion uint32) error
	Cancel()
}

// UserConsentState is the driver's answer to UpdateAvailable.
type UserConsentState int

const (
	UserConsentUnknown UserConsentState = iota
	UserConsentGranted
	UserConsentDenied
	UserConsentDeferred
)

// UpdateDescription summarizes an update offered by a provider, passed to
// the driver so it can decide whether to proceed.
type UpdateDescription struct {
	SoftwareVersion       uint32
	SoftwareVersionString string
	ImageURI              string
	UpdateToken           []byte
	UserConsentNeeded     bool

	// DelayedActionTime is the number of seconds the provider asked the
	// requestor to wait before taking the next action. It is only set when
	// the description accompanies an AwaitNextAction response; zero
	// otherwise.
	DelayedActionTime uint32
}

// Driver is the product-specific policy surface: it decides whether to
// accept an update, and is told about terminal and notable events so it can
// drive UI, logging, or safety interlocks.
type Driver interface {
	// UpdateAvailable is called when a provider reports an update. The
	// returned state determines whether the requestor proceeds with
	// download immediately, waits, or declines.
	UpdateAvailable(update UpdateDescription) UserConsentState

	// UpdateDiscontinued is called when a provider reports NotAvailable or
	// the requestor otherwise determines no update applies.
	UpdateDiscontinued()

	// UpdateDownloaded is called once the BDX transfer completes
	// successfully, before ApplyUpdateRequest is sent.
	UpdateDownloaded()

	// UpdateConfirmationRequired is called when the provider's
	// ApplyUpdateResponse is AwaitNextAction and the driver is being asked
	// to decide how to proceed (e.g. present a confirmation UI before
	// rebooting into the new image). update.DelayedActionTime carries the
	// provider's requested wait before the requestor should re-query, so
	// the driver can schedule that follow-up itself.
	UpdateConfirmationRequired(update UpdateDescription)

	// HandleError is called whenever the state machine falls back to Idle
	// due to an error, naming the state it was in at the time.
	HandleError(err error, stateAtError State)
}
