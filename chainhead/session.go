// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chainhead

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/blinklabs-io/gosubstrate/chain"
	"github.com/blinklabs-io/gosubstrate/rpc"
	"github.com/jinzhu/copier"
)

// Session represents one follow subscription and the state scoped to it: the
// pinned block set, running operations, and event subscribers. All of that
// state is owned by a single event loop goroutine and everything else talks
// to it through channels, so no mutex guards the pin or operation maps
type Session struct {
	client   *Client
	config   *Config
	logger   *slog.Logger
	rpcSub   *rpc.Subscription
	followId string

	stateMutex sync.Mutex
	state      SessionState
	stopErr    error

	// Owned by the event loop
	pins            map[chain.Hash]*pinnedBlock
	finalizedOrder  []chain.Hash
	latestFinalized chain.Hash
	sawInitialized  bool
	currentRuntime  *chain.RuntimeVersion
	pendingRuntimes map[chain.Hash]*chain.RuntimeVersion
	handles         map[*operationHandle]struct{}
	operations      map[string]*operationHandle
	unclaimedOps    map[string]*unclaimedBuffer
	watchers        map[*EventSubscription]struct{}
	runtimeWatchers map[*RuntimeSubscription]struct{}
	pendingLatest   []*leaseRequest

	attachChan         chan *attachRequest
	claimChan          chan *claimRequest
	detachChan         chan *operationHandle
	watchChan          chan *watchRequest
	unwatchChan        chan *EventSubscription
	watchRuntimeChan   chan *watchRuntimeRequest
	unwatchRuntimeChan chan *RuntimeSubscription
	leaseChan          chan *leaseRequest
	releaseChan        chan chain.Hash
	pinnedChan         chan *pinnedRequest

	stopChan chan struct{}
	onceStop sync.Once
	doneChan chan struct{}

	// backgroundCtx covers fire-and-forget server calls (unpin and
	// stopOperation) so they are abandoned when the session shuts down
	backgroundCtx    context.Context
	backgroundCancel context.CancelFunc
	waitGroup        sync.WaitGroup
}

// pinnedBlock tracks the session-local state of one pinned block. A lease
// prevents the retention window from unpinning a block while a caller still
// holds a reference to it; a retired block is unpinned once its last lease is
// released
type pinnedBlock struct {
	leases    int
	finalized bool
	retired   bool
}

// unclaimedBuffer holds operation events that arrived before the caller
// learned its operation id from the method response
type unclaimedBuffer struct {
	events     []FollowEvent
	overflowed bool
}

type attachRequest struct {
	blockHash  chain.Hash
	handle     *operationHandle
	resultChan chan error
}

type claimRequest struct {
	handle      *operationHandle
	operationId string
}

type watchRequest struct {
	resultChan chan *EventSubscription
}

type watchRuntimeRequest struct {
	resultChan chan *RuntimeSubscription
}

type leaseRequest struct {
	ctx        context.Context
	blockHash  chain.Hash
	latest     bool
	resultChan chan leaseResult
}

type leaseResult struct {
	blockHash chain.Hash
	err       error
}

type pinnedRequest struct {
	blockHash  chain.Hash
	resultChan chan bool
}

// operationHandle receives the events routed to a single operation. The
// error channel carries at most one terminal failure
type operationHandle struct {
	operationId string
	eventChan   chan FollowEvent
	errorChan   chan error
}

func (h *operationHandle) deliver(event FollowEvent) bool {
	select {
	case h.eventChan <- event:
		return true
	default:
		return false
	}
}

func (h *operationHandle) fail(err error) {
	select {
	case h.errorChan <- err:
	default:
	}
}

// EventSubscription delivers a copy of every follow event to one consumer.
// A subscriber that stops draining its channel is disconnected and receives
// ErrEventOverflow on its error channel
type EventSubscription struct {
	session    *Session
	eventChan  chan FollowEvent
	errorChan  chan error
	onceCancel sync.Once
}

// Chan returns the channel that events are delivered on. It is closed when
// the subscription is canceled or the session ends; a stop event is always
// the last event delivered when the session ends
func (e *EventSubscription) Chan() <-chan FollowEvent {
	return e.eventChan
}

// Errors returns the channel that a terminal subscription failure is
// reported on
func (e *EventSubscription) Errors() <-chan error {
	return e.errorChan
}

// Cancel removes the subscription from the session
func (e *EventSubscription) Cancel() {
	e.onceCancel.Do(func() {
		select {
		case e.session.unwatchChan <- e:
		case <-e.session.doneChan:
		}
	})
}

func (e *EventSubscription) enqueue(event FollowEvent) bool {
	select {
	case e.eventChan <- event:
		return true
	default:
		return false
	}
}

// RuntimeSubscription delivers distinct runtime versions as they take effect
// at finalized blocks. The current version is delivered first
type RuntimeSubscription struct {
	session    *Session
	updateChan chan *chain.RuntimeVersion
	onceCancel sync.Once
}

// Chan returns the channel that runtime versions are delivered on. It is
// closed when the subscription is canceled or the session ends
func (r *RuntimeSubscription) Chan() <-chan *chain.RuntimeVersion {
	return r.updateChan
}

// Cancel removes the subscription from the session
func (r *RuntimeSubscription) Cancel() {
	r.onceCancel.Do(func() {
		select {
		case r.session.unwatchRuntimeChan <- r:
		case <-r.session.doneChan:
		}
	})
}

func newSession(c *Client) *Session {
	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	return &Session{
		client:             c,
		config:             c.config,
		logger:             c.logger,
		state:              SessionStateUnfollowed,
		pins:               map[chain.Hash]*pinnedBlock{},
		pendingRuntimes:    map[chain.Hash]*chain.RuntimeVersion{},
		handles:            map[*operationHandle]struct{}{},
		operations:         map[string]*operationHandle{},
		unclaimedOps:       map[string]*unclaimedBuffer{},
		watchers:           map[*EventSubscription]struct{}{},
		runtimeWatchers:    map[*RuntimeSubscription]struct{}{},
		attachChan:         make(chan *attachRequest),
		claimChan:          make(chan *claimRequest),
		detachChan:         make(chan *operationHandle),
		watchChan:          make(chan *watchRequest),
		unwatchChan:        make(chan *EventSubscription),
		watchRuntimeChan:   make(chan *watchRuntimeRequest),
		unwatchRuntimeChan: make(chan *RuntimeSubscription),
		leaseChan:          make(chan *leaseRequest),
		releaseChan:        make(chan chain.Hash),
		pinnedChan:         make(chan *pinnedRequest),
		stopChan:           make(chan struct{}),
		doneChan:           make(chan struct{}),
		backgroundCtx:      backgroundCtx,
		backgroundCancel:   backgroundCancel,
	}
}

// Id returns the server-assigned follow subscription id
func (s *Session) Id() string {
	return s.followId
}

// State returns the current session state
func (s *Session) State() SessionState {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	return s.state
}

// Err returns the reason the session stopped, or nil while it is running.
// After an explicit Close it reports ErrFollowStopped
func (s *Session) Err() error {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	return s.stopErr
}

// Done returns a channel that is closed once the session has stopped and all
// of its state has been released
func (s *Session) Done() <-chan struct{} {
	return s.doneChan
}

// Close stops the session. The server is told to drop the subscription,
// which releases every pin in one step. Close blocks until the event loop
// and any background calls have finished, and is safe to call more than once
func (s *Session) Close() {
	s.onceStop.Do(func() {
		close(s.stopChan)
	})
	<-s.doneChan
	s.waitGroup.Wait()
}

// Pinned reports whether a block hash is currently in the session's pinned
// set. A stopped session pins nothing
func (s *Session) Pinned(blockHash chain.Hash) bool {
	req := &pinnedRequest{
		blockHash:  blockHash,
		resultChan: make(chan bool, 1),
	}
	select {
	case s.pinnedChan <- req:
	case <-s.doneChan:
		return false
	}
	select {
	case pinned := <-req.resultChan:
		return pinned
	case <-s.doneChan:
		return false
	}
}

// Watch subscribes to the session's follow events. Each subscriber gets its
// own copy of every event. A subscriber joining mid-session first receives a
// synthesized initialized event describing the latest finalized block so it
// does not need to wait for the next finalization to orient itself
func (s *Session) Watch(ctx context.Context) (*EventSubscription, error) {
	req := &watchRequest{
		resultChan: make(chan *EventSubscription, 1),
	}
	select {
	case s.watchChan <- req:
	case <-s.doneChan:
		return nil, ErrFollowStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case watcher := <-req.resultChan:
		return watcher, nil
	case <-s.doneChan:
		return nil, ErrFollowStopped
	}
}

// WatchRuntime subscribes to runtime version changes observed at finalized
// blocks. The version in effect now is delivered immediately when known.
// Fails with ErrRuntimeNotFollowed when the session was started without
// runtime reporting
func (s *Session) WatchRuntime(ctx context.Context) (*RuntimeSubscription, error) {
	if !s.config.FollowRuntime {
		return nil, ErrRuntimeNotFollowed
	}
	req := &watchRuntimeRequest{
		resultChan: make(chan *RuntimeSubscription, 1),
	}
	select {
	case s.watchRuntimeChan <- req:
	case <-s.doneChan:
		return nil, ErrFollowStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case watcher := <-req.resultChan:
		return watcher, nil
	case <-s.doneChan:
		return nil, ErrFollowStopped
	}
}

// LeaseLatestFinalized returns the hash of the most recently finalized block
// along with a release func that keeps the block pinned until called. The
// call waits for the initialized event when the session is still starting up
func (s *Session) LeaseLatestFinalized(
	ctx context.Context,
) (chain.Hash, func(), error) {
	req := &leaseRequest{
		ctx:        ctx,
		latest:     true,
		resultChan: make(chan leaseResult, 1),
	}
	select {
	case s.leaseChan <- req:
	case <-s.doneChan:
		return chain.Hash{}, nil, ErrFollowStopped
	case <-ctx.Done():
		return chain.Hash{}, nil, ctx.Err()
	}
	select {
	case res := <-req.resultChan:
		if res.err != nil {
			return chain.Hash{}, nil, res.err
		}
		return res.blockHash, s.releaseFunc(res.blockHash), nil
	case <-s.doneChan:
		return chain.Hash{}, nil, ErrFollowStopped
	case <-ctx.Done():
		// A lease granted in the same instant the context expired must
		// not leak, so check for a raced answer before giving up
		select {
		case res := <-req.resultChan:
			if res.err == nil {
				return res.blockHash, s.releaseFunc(res.blockHash), nil
			}
		default:
		}
		return chain.Hash{}, nil, ctx.Err()
	}
}

// LeaseBlock takes a lease on a pinned block, keeping it in the pinned set
// until the returned release func is called even if the retention window
// would otherwise evict it
func (s *Session) LeaseBlock(
	ctx context.Context,
	blockHash chain.Hash,
) (func(), error) {
	req := &leaseRequest{
		ctx:        ctx,
		blockHash:  blockHash,
		resultChan: make(chan leaseResult, 1),
	}
	select {
	case s.leaseChan <- req:
	case <-s.doneChan:
		return nil, ErrFollowStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.resultChan:
		if res.err != nil {
			return nil, res.err
		}
		return s.releaseFunc(res.blockHash), nil
	case <-s.doneChan:
		return nil, ErrFollowStopped
	}
}

func (s *Session) releaseFunc(blockHash chain.Hash) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			select {
			case s.releaseChan <- blockHash:
			case <-s.doneChan:
			}
		})
	}
}

// trackBackground registers a background server call with the session,
// refusing once the session has stopped so Close never races a late Add
func (s *Session) trackBackground() bool {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	if s.state == SessionStateStopped {
		return false
	}
	s.waitGroup.Add(1)
	return true
}

func (s *Session) transition(newState SessionState) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	if !slices.Contains(sessionStateTransitions[s.state], newState) {
		s.logger.Warn(
			"invalid session state transition",
			"component", "chainhead",
			"from", s.state.String(),
			"to", newState.String(),
		)
		return
	}
	s.state = newState
}

func (s *Session) eventLoop() {
	defer close(s.doneChan)
	for {
		select {
		case <-s.stopChan:
			s.shutdown(nil)
			return
		case msg, ok := <-s.rpcSub.Chan():
			if !ok {
				s.shutdown(ErrFollowStopped)
				return
			}
			if msg.Err != nil {
				s.shutdown(msg.Err)
				return
			}
			event, err := NewFollowEventFromJson(msg.Result)
			if err != nil {
				s.shutdown(rpc.ProtocolError{Reason: err.Error()})
				return
			}
			if _, isStop := event.(*EventStop); isStop {
				s.logger.Debug(
					"server stopped follow subscription",
					"component", "chainhead",
					"subscription_id", s.followId,
				)
				s.shutdown(ErrFollowStopped)
				return
			}
			s.handleEvent(event)
		case req := <-s.attachChan:
			s.handleAttach(req)
		case req := <-s.claimChan:
			s.handleClaim(req)
		case handle := <-s.detachChan:
			s.removeHandle(handle)
		case req := <-s.watchChan:
			s.handleWatch(req)
		case watcher := <-s.unwatchChan:
			s.handleUnwatch(watcher)
		case req := <-s.watchRuntimeChan:
			s.handleWatchRuntime(req)
		case watcher := <-s.unwatchRuntimeChan:
			s.handleUnwatchRuntime(watcher)
		case req := <-s.leaseChan:
			s.handleLease(req)
		case blockHash := <-s.releaseChan:
			s.handleRelease(blockHash)
		case req := <-s.pinnedChan:
			_, pinned := s.pins[req.blockHash]
			req.resultChan <- pinned
		}
	}
}

// handleEvent applies an event to the pin set and operation routing before
// fanning it out to subscribers, so a subscriber that reacts to an event
// observes the pin state that event produced
func (s *Session) handleEvent(event FollowEvent) {
	var toUnpin []chain.Hash
	switch ev := event.(type) {
	case *EventInitialized:
		for _, blockHash := range ev.FinalizedBlockHashes {
			s.pinBlock(blockHash, true)
		}
		if len(ev.FinalizedBlockHashes) > 0 {
			s.latestFinalized = ev.FinalizedBlockHashes[len(ev.FinalizedBlockHashes)-1]
		}
		s.sawInitialized = true
		if version := ev.FinalizedBlockRuntime.RuntimeVersion(); version != nil {
			s.setCurrentRuntime(version)
		}
		s.drainPendingLatest()
	case *EventNewBlock:
		// The parent is pinned as well since the server guarantees both
		// are available
		s.pinBlock(ev.BlockHash, false)
		s.pinBlock(ev.ParentBlockHash, false)
		if version := ev.NewRuntime.RuntimeVersion(); version != nil {
			s.pendingRuntimes[ev.BlockHash] = version
		}
	case *EventBestBlockChanged:
		s.pinBlock(ev.BestBlockHash, false)
	case *EventFinalized:
		for _, blockHash := range ev.FinalizedBlockHashes {
			s.pinBlock(blockHash, true)
			if version, ok := s.pendingRuntimes[blockHash]; ok {
				s.setCurrentRuntime(version)
				delete(s.pendingRuntimes, blockHash)
			}
		}
		if len(ev.FinalizedBlockHashes) > 0 {
			s.latestFinalized = ev.FinalizedBlockHashes[len(ev.FinalizedBlockHashes)-1]
		}
		// Pruned blocks leave the pinned set before anything else can
		// observe this event
		for _, blockHash := range ev.PrunedBlockHashes {
			delete(s.pendingRuntimes, blockHash)
			if _, ok := s.pins[blockHash]; ok {
				delete(s.pins, blockHash)
				toUnpin = append(toUnpin, blockHash)
			}
		}
		toUnpin = append(toUnpin, s.applyRetention()...)
	default:
		if operationId, ok := operationEventId(event); ok {
			s.routeOperationEvent(operationId, event)
		}
	}
	s.broadcast(event)
	if len(toUnpin) > 0 {
		s.spawnUnpin(toUnpin)
	}
}

func (s *Session) pinBlock(blockHash chain.Hash, finalized bool) {
	entry, ok := s.pins[blockHash]
	if !ok {
		entry = &pinnedBlock{}
		s.pins[blockHash] = entry
	}
	if finalized && !entry.finalized {
		entry.finalized = true
		s.finalizedOrder = append(s.finalizedOrder, blockHash)
	}
}

// applyRetention evicts the oldest finalized blocks beyond the configured
// window. Leased blocks are retired instead and unpinned when released
func (s *Session) applyRetention() []chain.Hash {
	window := int(s.config.RetentionWindow)
	if window <= 0 {
		return nil
	}
	var toUnpin []chain.Hash
	for len(s.finalizedOrder) > window {
		blockHash := s.finalizedOrder[0]
		s.finalizedOrder = s.finalizedOrder[1:]
		entry, ok := s.pins[blockHash]
		if !ok {
			continue
		}
		if entry.leases > 0 {
			entry.retired = true
			continue
		}
		delete(s.pins, blockHash)
		toUnpin = append(toUnpin, blockHash)
	}
	return toUnpin
}

func (s *Session) handleAttach(req *attachRequest) {
	if _, ok := s.pins[req.blockHash]; !ok {
		req.resultChan <- ErrNotPinned
		return
	}
	s.handles[req.handle] = struct{}{}
	req.resultChan <- nil
}

// handleClaim binds an operation id to its handle and replays any events
// that arrived before the caller learned the id
func (s *Session) handleClaim(req *claimRequest) {
	if _, ok := s.handles[req.handle]; !ok {
		return
	}
	req.handle.operationId = req.operationId
	s.operations[req.operationId] = req.handle
	buffered, ok := s.unclaimedOps[req.operationId]
	if !ok {
		return
	}
	delete(s.unclaimedOps, req.operationId)
	if buffered.overflowed {
		req.handle.fail(ErrEventOverflow)
		s.removeHandle(req.handle)
		return
	}
	for _, event := range buffered.events {
		if !req.handle.deliver(event) {
			req.handle.fail(ErrEventOverflow)
			s.removeHandle(req.handle)
			return
		}
	}
}

func (s *Session) routeOperationEvent(operationId string, event FollowEvent) {
	if handle, ok := s.operations[operationId]; ok {
		if !handle.deliver(event) {
			s.logger.Warn(
				"operation event queue overflow",
				"component", "chainhead",
				"subscription_id", s.followId,
				"operation_id", operationId,
			)
			handle.fail(ErrEventOverflow)
			s.removeHandle(handle)
		}
		return
	}
	// Not yet claimed; hold events until the caller learns its operation
	// id from the method response
	buffered, ok := s.unclaimedOps[operationId]
	if !ok {
		buffered = &unclaimedBuffer{}
		s.unclaimedOps[operationId] = buffered
	}
	if buffered.overflowed {
		return
	}
	if len(buffered.events) >= s.config.EventQueueLimit {
		buffered.overflowed = true
		buffered.events = nil
		return
	}
	buffered.events = append(buffered.events, event)
}

func (s *Session) removeHandle(handle *operationHandle) {
	delete(s.handles, handle)
	if handle.operationId != "" {
		delete(s.operations, handle.operationId)
		delete(s.unclaimedOps, handle.operationId)
	}
}

func (s *Session) handleWatch(req *watchRequest) {
	watcher := &EventSubscription{
		session:   s,
		eventChan: make(chan FollowEvent, s.config.EventQueueLimit),
		errorChan: make(chan error, 1),
	}
	s.watchers[watcher] = struct{}{}
	if s.sawInitialized {
		watcher.enqueue(s.snapshotEvent())
	}
	req.resultChan <- watcher
}

func (s *Session) handleUnwatch(watcher *EventSubscription) {
	if _, ok := s.watchers[watcher]; !ok {
		return
	}
	delete(s.watchers, watcher)
	close(watcher.eventChan)
}

func (s *Session) handleWatchRuntime(req *watchRuntimeRequest) {
	watcher := &RuntimeSubscription{
		session:    s,
		updateChan: make(chan *chain.RuntimeVersion, 4),
	}
	s.runtimeWatchers[watcher] = struct{}{}
	if s.currentRuntime != nil {
		watcher.updateChan <- copyRuntimeVersion(s.currentRuntime)
	}
	req.resultChan <- watcher
}

func (s *Session) handleUnwatchRuntime(watcher *RuntimeSubscription) {
	if _, ok := s.runtimeWatchers[watcher]; !ok {
		return
	}
	delete(s.runtimeWatchers, watcher)
	close(watcher.updateChan)
}

func (s *Session) handleLease(req *leaseRequest) {
	if req.ctx != nil && req.ctx.Err() != nil {
		req.resultChan <- leaseResult{err: req.ctx.Err()}
		return
	}
	blockHash := req.blockHash
	if req.latest {
		if !s.sawInitialized {
			// Parked until the initialized event tells us where the
			// finalized chain is
			s.pendingLatest = append(s.pendingLatest, req)
			return
		}
		blockHash = s.latestFinalized
	}
	entry, ok := s.pins[blockHash]
	if !ok {
		req.resultChan <- leaseResult{err: ErrNotPinned}
		return
	}
	entry.leases++
	req.resultChan <- leaseResult{blockHash: blockHash}
}

func (s *Session) drainPendingLatest() {
	if len(s.pendingLatest) == 0 {
		return
	}
	pending := s.pendingLatest
	s.pendingLatest = nil
	for _, req := range pending {
		s.handleLease(req)
	}
}

func (s *Session) handleRelease(blockHash chain.Hash) {
	entry, ok := s.pins[blockHash]
	if !ok {
		return
	}
	if entry.leases > 0 {
		entry.leases--
	}
	if entry.retired && entry.leases == 0 {
		delete(s.pins, blockHash)
		s.spawnUnpin([]chain.Hash{blockHash})
	}
}

// snapshotEvent synthesizes an initialized event from the session's current
// view for subscribers that join after the real one was consumed
func (s *Session) snapshotEvent() *EventInitialized {
	event := &EventInitialized{
		Event:                EventTypeInitialized,
		FinalizedBlockHashes: []chain.Hash{s.latestFinalized},
	}
	if s.currentRuntime != nil {
		event.FinalizedBlockRuntime = &RuntimeEvent{
			Type: RuntimeEventTypeValid,
			Spec: newRuntimeSpec(s.currentRuntime),
		}
	}
	return event
}

func (s *Session) setCurrentRuntime(version *chain.RuntimeVersion) {
	if s.currentRuntime != nil &&
		s.currentRuntime.SpecVersion == version.SpecVersion &&
		s.currentRuntime.TransactionVersion == version.TransactionVersion {
		return
	}
	s.currentRuntime = version
	s.logger.Debug(
		"runtime version changed",
		"component", "chainhead",
		"subscription_id", s.followId,
		"spec_version", version.SpecVersion,
		"transaction_version", version.TransactionVersion,
	)
	for watcher := range s.runtimeWatchers {
		select {
		case watcher.updateChan <- copyRuntimeVersion(version):
		default:
			delete(s.runtimeWatchers, watcher)
			close(watcher.updateChan)
		}
	}
}

func (s *Session) broadcast(event FollowEvent) {
	for watcher := range s.watchers {
		if !watcher.enqueue(copyFollowEvent(event)) {
			s.logger.Warn(
				"disconnecting slow event subscriber",
				"component", "chainhead",
				"subscription_id", s.followId,
			)
			watcher.fail(ErrEventOverflow)
			delete(s.watchers, watcher)
			close(watcher.eventChan)
		}
	}
}

func (e *EventSubscription) fail(err error) {
	select {
	case e.errorChan <- err:
	default:
	}
}

// spawnUnpin releases server-side pins in one batched call off the event
// loop. Failures are logged and not retried since the server drops the pins
// anyway when the subscription ends
func (s *Session) spawnUnpin(blockHashes []chain.Hash) {
	if !s.trackBackground() {
		return
	}
	go func() {
		defer s.waitGroup.Done()
		ctx, cancel := context.WithTimeout(s.backgroundCtx, unpinTimeout)
		defer cancel()
		err := s.client.rpcClient.Call(
			ctx,
			MethodUnpin,
			[]any{s.followId, blockHashes},
			nil,
		)
		if err != nil {
			s.logger.Warn(
				"unpin failed",
				"component", "chainhead",
				"subscription_id", s.followId,
				"blocks", len(blockHashes),
				"error", err,
			)
		}
	}()
}

// shutdown releases all session state. Operations fail with
// ErrFollowStopped, subscribers receive a final stop event, and the server
// subscription is dropped, which releases every remaining pin in one step
func (s *Session) shutdown(reason error) {
	if reason == nil {
		reason = ErrFollowStopped
	}
	s.stateMutex.Lock()
	s.stopErr = reason
	s.stateMutex.Unlock()
	s.transition(SessionStateStopped)
	s.backgroundCancel()
	s.logger.Debug(
		"follow session stopped",
		"component", "chainhead",
		"subscription_id", s.followId,
		"reason", reason,
	)
	for handle := range s.handles {
		handle.fail(ErrFollowStopped)
	}
	s.handles = nil
	s.operations = nil
	s.unclaimedOps = nil
	s.pins = nil
	s.finalizedOrder = nil
	s.pendingRuntimes = nil
	for _, req := range s.pendingLatest {
		req.resultChan <- leaseResult{err: ErrFollowStopped}
	}
	s.pendingLatest = nil
	for watcher := range s.watchers {
		watcher.enqueue(&EventStop{Event: EventTypeStop})
		close(watcher.eventChan)
	}
	s.watchers = nil
	for watcher := range s.runtimeWatchers {
		close(watcher.updateChan)
	}
	s.runtimeWatchers = nil
	s.rpcSub.Unsubscribe()
}

// copyFollowEvent deep copies an event so no two consumers share its slices
func copyFollowEvent(event FollowEvent) FollowEvent {
	var dst FollowEvent
	switch event.(type) {
	case *EventInitialized:
		dst = &EventInitialized{}
	case *EventNewBlock:
		dst = &EventNewBlock{}
	case *EventBestBlockChanged:
		dst = &EventBestBlockChanged{}
	case *EventFinalized:
		dst = &EventFinalized{}
	case *EventOperationBodyDone:
		dst = &EventOperationBodyDone{}
	case *EventOperationCallDone:
		dst = &EventOperationCallDone{}
	case *EventOperationStorageItems:
		dst = &EventOperationStorageItems{}
	case *EventOperationWaitingForContinue:
		dst = &EventOperationWaitingForContinue{}
	case *EventOperationStorageDone:
		dst = &EventOperationStorageDone{}
	case *EventOperationInaccessible:
		dst = &EventOperationInaccessible{}
	case *EventOperationError:
		dst = &EventOperationError{}
	case *EventStop:
		dst = &EventStop{}
	default:
		return event
	}
	if err := copier.CopyWithOption(dst, event, copier.Option{DeepCopy: true}); err != nil {
		return event
	}
	return dst
}

func copyRuntimeVersion(version *chain.RuntimeVersion) *chain.RuntimeVersion {
	dst := &chain.RuntimeVersion{}
	if err := copier.CopyWithOption(dst, version, copier.Option{DeepCopy: true}); err != nil {
		tmpVersion := *version
		return &tmpVersion
	}
	return dst
}
