package ota

import (
	"context"
	"fmt"
	"sync"

	"github.com/openfabric-io/devicecore/pkg/fabric"
	"github.com/openfabric-io/devicecore/pkg/ota/wire"
	"github.com/pion/logging"
)

// bdxSynchronousProtocol is the only download protocol this requestor
// advertises support for in QueryImageRequest.ProtocolsSupported.
const bdxSynchronousProtocol = 0

// Requestor drives the OTA Requestor state machine (Section 11.20.3): it
// queries a provider for software updates, downloads and applies them, and
// persists enough state to resume across a reboot.
//
// Requestor is not internally locked for its state-machine fields. Like
// matter.Node, it is meant to be driven from a single owning goroutine:
// TriggerImmediateQuery, AnnounceOTAProvider, CancelImageUpdate, and the
// DownloaderDelegate callbacks must all be invoked from that one goroutine.
// Only the persisted default-provider list, which callers may read from
// elsewhere, is guarded by a mutex.
type Requestor struct {
	config RequestorConfig
	log    logging.LeveledLogger

	state State

	// currentProvider/currentUpdateToken/currentTargetVersion describe the
	// update in flight from the moment a download begins through apply and
	// notify. They mirror what is persisted under keyCurrentUpdate.
	currentProvider      ProviderLocation
	currentUpdateToken   []byte
	currentTargetVersion uint32

	// generation discriminates a download's callbacks from a stale, prior
	// one: Begin bumps it, and Cancel bumps it again so that any callback
	// already queued from the cancelled attempt is recognized and dropped.
	generation int

	providersMu sync.Mutex
}

// NewRequestor creates a new Requestor. The requestor starts Idle; call
// TriggerImmediateQuery or AnnounceOTAProvider to begin an update check.
func NewRequestor(config RequestorConfig) (*Requestor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	r := &Requestor{
		config: config,
		state:  StateIdle,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("ota")
	}

	config.FabricTable.AddDelegate(r)

	if rec := r.loadCurrentUpdate(); rec != nil && r.log != nil {
		r.log.Warnf("found leftover update record for provider node %d at startup; discarding", rec.Provider.NodeID)
	}

	return r, nil
}

// State returns the requestor's current state. Like the other
// state-machine accessors, it must be called from the owning goroutine.
func (r *Requestor) State() State {
	return r.state
}

func (r *Requestor) logf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Warnf(format, args...)
	}
}

// OnFabricPersisted implements fabric.FabricTableDelegate. The requestor has
// no state keyed off fabric creation.
func (r *Requestor) OnFabricPersisted(index fabric.FabricIndex) {}

// OnFabricDeleted implements fabric.FabricTableDelegate, pruning any default
// provider configured for the removed fabric so it is never retried.
func (r *Requestor) OnFabricDeleted(index fabric.FabricIndex) {
	if err := r.RemoveDefaultProvider(index); err != nil {
		r.logf("failed to prune default provider for removed fabric %d: %v", index, err)
	}
}

// TriggerImmediateQuery starts an update check against the first
// configured default provider. It fails with ErrIncorrectState unless the
// requestor is Idle, and ErrNoProvider if no default provider is set.
func (r *Requestor) TriggerImmediateQuery(ctx context.Context) error {
	if r.state != StateIdle {
		return ErrIncorrectState
	}
	providers := r.DefaultProviders()
	if len(providers) == 0 {
		return ErrNoProvider
	}
	r.state = StateQuerying
	return r.queryProvider(ctx, providers[0])
}

// AnnounceOTAProvider starts an update check against the node named in an
// AnnounceOTAProvider command, bypassing the default-provider list (Section
// 11.20.3.2's "immediate" path triggered by a provider's own announcement).
func (r *Requestor) AnnounceOTAProvider(ctx context.Context, fabricIndex fabric.FabricIndex, req wire.AnnounceOTAProviderRequest) error {
	if r.state != StateIdle {
		return ErrIncorrectState
	}
	r.state = StateQuerying

	provider := ProviderLocation{
		FabricIndex: fabricIndex,
		NodeID:      fabric.NodeID(req.ProviderNodeID),
		Endpoint:    req.Endpoint,
	}
	return r.queryProvider(ctx, provider)
}

// queryProvider performs the QueryImage exchange against provider and
// drives the resulting status. Caller must have already transitioned the
// state to StateQuerying.
func (r *Requestor) queryProvider(ctx context.Context, provider ProviderLocation) error {
	sess, err := r.config.SessionInitiator.EstablishSession(ctx, provider.FabricIndex, provider.NodeID)
	if err != nil {
		r.failToIdle(fmt.Errorf("%w: %v", ErrNetworkError, err))
		return err
	}
	defer sess.Close()

	qCtx, cancel := context.WithTimeout(ctx, r.config.QueryTimeout)
	defer cancel()

	req := wire.QueryImageRequest{
		VendorID:            uint16(r.config.VendorID),
		ProductID:           r.config.ProductID,
		SoftwareVersion:     r.config.SoftwareVersion,
		ProtocolsSupported:  []uint8{bdxSynchronousProtocol},
		RequestorCanConsent: true,
	}
	resp, err := r.config.Provider.QueryImage(qCtx, sess, req)
	if err != nil {
		r.failToIdle(err)
		return err
	}

	switch resp.Status {
	case wire.QueryImageStatusBusy:
		// Busy is not an error: the requestor returns to Idle and the
		// driver decides whether/when to retry.
		r.state = StateIdle
		r.config.Driver.HandleError(fmt.Errorf("%w: retry after %ds", ErrBusy, resp.DelayedActionTime), StateQuerying)
		return nil

	case wire.QueryImageStatusNotAvailable:
		r.config.Driver.UpdateDiscontinued()
		r.state = StateIdle
		return nil

	case wire.QueryImageStatusUpdateAvailable:
		if len(resp.UpdateToken) == 0 {
			token, err := generateUpdateToken(r.config.NodeID)
			if err != nil {
				r.failToIdle(err)
				return err
			}
			resp.UpdateToken = token
			if err := r.storeUpdateToken(token); err != nil {
				r.logf("failed to persist generated update token: %v", err)
			}
		}
		return r.handleUpdateAvailable(ctx, provider, resp)

	default:
		err := fmt.Errorf("ota: unrecognized query image status %d", resp.Status)
		r.failToIdle(err)
		return err
	}
}

func (r *Requestor) handleUpdateAvailable(ctx context.Context, provider ProviderLocation, resp *wire.QueryImageResponse) error {
	update := UpdateDescription{
		SoftwareVersion:       resp.SoftwareVersion,
		SoftwareVersionString: resp.SoftwareVersionString,
		ImageURI:              resp.ImageURI,
		UpdateToken:           resp.UpdateToken,
		UserConsentNeeded:     resp.UserConsentNeeded,
	}

	switch r.config.Driver.UpdateAvailable(update) {
	case UserConsentGranted:
		return r.beginDownload(ctx, provider, resp)
	case UserConsentDeferred:
		r.state = StateDelayedOnUserConsent
		r.currentProvider = provider
		r.currentUpdateToken = resp.UpdateToken
		r.currentTargetVersion = resp.SoftwareVersion
		return nil
	default: // Denied or Unknown: treat as a decline.
		r.state = StateIdle
		return nil
	}
}

// ResumeDownload moves a requestor parked in StateDelayedOnUserConsent
// (consent deferred by the driver) into the download phase, once the
// driver obtains consent out of band.
func (r *Requestor) ResumeDownload(ctx context.Context) error {
	if r.state != StateDelayedOnUserConsent {
		return ErrIncorrectState
	}
	resp := &wire.QueryImageResponse{
		Status:          wire.QueryImageStatusUpdateAvailable,
		SoftwareVersion: r.currentTargetVersion,
		UpdateToken:     r.currentUpdateToken,
	}
	return r.beginDownload(ctx, r.currentProvider, resp)
}

func (r *Requestor) beginDownload(ctx context.Context, provider ProviderLocation, resp *wire.QueryImageResponse) error {
	rec := &UpdateRecord{
		Provider:      provider,
		UpdateToken:   resp.UpdateToken,
		TargetVersion: resp.SoftwareVersion,
	}
	if err := r.storeCurrentUpdate(rec); err != nil {
		r.logf("failed to persist current update record: %v", err)
	}

	r.currentProvider = provider
	r.currentUpdateToken = resp.UpdateToken
	r.currentTargetVersion = resp.SoftwareVersion
	r.state = StateDownloadInProgress
	r.generation++

	r.config.Downloader.SetStateDelegate(r)
	if err := r.config.Downloader.Begin(ctx, resp.ImageURI, resp.UpdateToken, resp.SoftwareVersion); err != nil {
		r.failToIdle(err)
		return err
	}
	return nil
}

// CancelImageUpdate is the only universal cancellation: from any
// non-terminal state it aborts the downloader, clears the provider
// location, and returns to Idle. Bumping generation ensures any callback
// the downloader delivers after this call returns, for the attempt just
// cancelled, is recognized as stale and dropped.
func (r *Requestor) CancelImageUpdate() error {
	if r.state == StateIdle || r.state == StateUnknown {
		return ErrIncorrectState
	}

	r.state = StateIdle
	r.currentProvider = ProviderLocation{}
	r.currentUpdateToken = nil
	r.currentTargetVersion = 0
	r.generation++

	r.config.Downloader.Cancel()
	if err := r.storeCurrentUpdate(nil); err != nil {
		r.logf("failed to clear current update record: %v", err)
	}
	return nil
}

// OnDownloadStateChanged implements DownloaderDelegate.
func (r *Requestor) OnDownloadStateChanged(state DownloadState, reason DownloadStateReason) {
	if r.state != StateDownloadInProgress && r.state != StateDownloading {
		// Stray callback from a download that was already cancelled or
		// superseded; ignore it.
		return
	}

	switch state {
	case DownloadStateInProgress:
		r.state = StateDownloading

	case DownloadStateComplete:
		r.state = StateApplying
		r.handleDownloadComplete()

	case DownloadStateFailed:
		r.failToIdle(fmt.Errorf("ota: download failed (%v)", reason))
	}
}

// OnProgress implements DownloaderDelegate. The requestor itself tracks no
// progress state; a richer adapter embedding Requestor can surface this to
// a cluster attribute.
func (r *Requestor) OnProgress(percent uint8) {}

// OnDownloadTimeout implements DownloaderDelegate.
func (r *Requestor) OnDownloadTimeout() {
	if r.state != StateDownloadInProgress && r.state != StateDownloading {
		return
	}
	r.failToIdle(ErrTimeout)
}

// handleDownloadComplete runs the apply exchange once a download finishes,
// on the same goroutine that delivered the completion callback.
func (r *Requestor) handleDownloadComplete() {
	provider := r.currentProvider
	token := r.currentUpdateToken
	version := r.currentTargetVersion
	gen := r.generation

	r.config.Driver.UpdateDownloaded()

	sess, err := r.config.SessionInitiator.EstablishSession(context.Background(), provider.FabricIndex, provider.NodeID)
	if err != nil {
		r.failIfCurrent(gen, fmt.Errorf("%w: %v", ErrNetworkError, err))
		return
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), r.config.ApplyTimeout)
	defer cancel()

	resp, err := r.config.Provider.ApplyUpdateRequest(ctx, sess, wire.ApplyUpdateRequest{
		UpdateToken: token,
		NewVersion:  version,
	})
	if err != nil {
		r.failIfCurrent(gen, err)
		return
	}
	if gen != r.generation {
		// Cancelled while the apply request was outstanding.
		return
	}

	switch resp.Action {
	case wire.ApplyUpdateActionProceed:
		r.applyAndNotify(provider, token, version)

	case wire.ApplyUpdateActionAwaitNextAction:
		r.state = StateDelayedOnApply
		r.config.Driver.UpdateConfirmationRequired(UpdateDescription{
			SoftwareVersion:   version,
			UpdateToken:       token,
			DelayedActionTime: resp.DelayedActionTime,
		})

	case wire.ApplyUpdateActionDiscontinue:
		r.config.Driver.UpdateDiscontinued()
		r.clearUpdateAndIdle()

	default:
		r.failIfCurrent(gen, fmt.Errorf("ota: unrecognized apply update action %d", resp.Action))
	}
}

// applyAndNotify invokes the driver's apply path and, on success, notifies
// the provider the update was applied. A real device reboots between these
// two steps; this requestor performs them inline and leaves the persisted
// update record in place on failure so a future boot (or retry) can still
// send NotifyUpdateApplied.
func (r *Requestor) applyAndNotify(provider ProviderLocation, token []byte, version uint32) {
	sess, err := r.config.SessionInitiator.EstablishSession(context.Background(), provider.FabricIndex, provider.NodeID)
	if err != nil {
		r.logf("failed to establish session for NotifyUpdateApplied, will retry later: %v", err)
		return
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), r.config.ApplyTimeout)
	defer cancel()

	err = r.config.Provider.NotifyUpdateApplied(ctx, sess, wire.NotifyUpdateAppliedRequest{
		UpdateToken:     token,
		SoftwareVersion: version,
	})
	if err != nil {
		r.logf("NotifyUpdateApplied failed, will retry later: %v", err)
		return
	}

	r.clearUpdateAndIdle()
}

func (r *Requestor) clearUpdateAndIdle() {
	if err := r.storeCurrentUpdate(nil); err != nil {
		r.logf("failed to clear current update record: %v", err)
	}
	if err := r.storeUpdateToken(nil); err != nil {
		r.logf("failed to clear update token: %v", err)
	}
	r.currentProvider = ProviderLocation{}
	r.currentUpdateToken = nil
	r.currentTargetVersion = 0
	r.state = StateIdle
}

// failIfCurrent reports err to the driver and falls back to Idle, unless
// gen is stale (the attempt it belongs to was already cancelled), in which
// case it is silently dropped per the ordering guarantees in Section 5.
func (r *Requestor) failIfCurrent(gen int, err error) {
	if gen != r.generation {
		return
	}
	r.failToIdle(err)
}

func (r *Requestor) failToIdle(err error) {
	prevState := r.state
	r.state = StateIdle
	r.config.Driver.HandleError(err, prevState)
}

var _ DownloaderDelegate = (*Requestor)(nil)
var _ fabric.FabricTableDelegate = (*Requestor)(nil)
