package ota

// State is the lifecycle state of an OTA Requestor.
// Spec Section 11.20.3.
type State int

const (
	// StateUnknown is the zero value, before the requestor has been started.
	StateUnknown State = iota

	// StateIdle means no update activity is in progress.
	StateIdle

	// StateQuerying means a QueryImage request is outstanding.
	StateQuerying

	// StateDownloadInProgress means the image is being downloaded.
	StateDownloadInProgress

	// StateDelayedOnUserConsent means a download is ready to begin but is
	// waiting on driver-mediated user consent.
	StateDelayedOnUserConsent

	// StateDownloading is a synonym historically distinguished from
	// StateDownloadInProgress in the source for metrics purposes; here it
	// marks that BDX transfer is actively moving bytes (as opposed to
	// StateDownloadInProgress's broader "download owns the state machine").
	StateDownloading

	// StateApplying means ApplyUpdateRequest has been sent and the
	// requestor is waiting for the provider's decision, or is invoking the
	// driver's apply path.
	StateApplying

	// StateDelayedOnApply means the provider asked the requestor to wait
	// and retry ApplyUpdateRequest later.
	StateDelayedOnApply

	// StateRollingBack means the driver is reverting a failed apply.
	StateRollingBack
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "Unknown"
	case StateIdle:
		return "Idle"
	case StateQuerying:
		return "Querying"
	case StateDownloadInProgress:
		return "DownloadInProgress"
	case StateDelayedOnUserConsent:
		return "DelayedOnUserConsent"
	case StateDownloading:
		return "Downloading"
	case StateApplying:
		return "Applying"
	case StateDelayedOnApply:
		return "DelayedOnApply"
	case StateRollingBack:
		return "RollingBack"
	default:
		return "Unknown"
	}
}

// CanStart reports whether TriggerImmediateQuery may be called from this
// state.
func (s State) CanStart() bool {
	return s == StateIdle
}

// IdleStateReason explains why the requestor most recently returned to
// StateIdle. Spec Section 11.20.3.4.
type IdleStateReason int

const (
	IdleStateReasonUnknown IdleStateReason = iota
	IdleStateReasonIdle
	IdleStateReasonDownloadError
	IdleStateReasonApplyError
	IdleStateReasonProviderResponseProcessingError
	IdleStateReasonRequestorCancelled
)

// String returns a human-readable name for the reason.
func (r IdleStateReason) String() string {
	switch r {
	case IdleStateReasonIdle:
		return "Idle"
	case IdleStateReasonDownloadError:
		return "DownloadError"
	case IdleStateReasonApplyError:
		return "ApplyError"
	case IdleStateReasonProviderResponseProcessingError:
		return "ProviderResponseProcessingError"
	case IdleStateReasonRequestorCancelled:
		return "RequestorCancelled"
	default:
		return "Unknown"
	}
}
