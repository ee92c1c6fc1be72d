// Package exporter implements the lifecycle state machine an exporter
// process runs while leased: AVAILABLE -> BEFORE_LEASE_HOOK -> LEASE_READY
// -> AFTER_LEASE_HOOK -> AVAILABLE, with the _HOOK_FAILED branches and
// on_failure escalation policy of the original design, grounded on
// python/packages/jumpstarter/jumpstarter/exporter/hooks.py and
// exporter/exporter.py.
package exporter

import (
	"sync"

	"github.com/jumpstarter-dev/jumpstarter/pkg/session"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

// LeaseContext holds everything the GetStatus/LogStream handlers and the
// hook runner need for a single lease's lifetime, resolving the
// requirement that "the phase is stored on the lease-context object, not
// solely on the Session" — GetStatus must answer correctly even in the
// window before a Session exists.
type LeaseContext struct {
	mu sync.RWMutex

	phase         jumpstarterv1.ExporterStatus
	statusMessage string

	leaseName  string
	clientName string

	session *session.Session
	logs    *LogSink
}

// NewLeaseContext starts a lease context in the AVAILABLE phase; Begin
// transitions it into BEFORE_LEASE_HOOK once a lease is actually acquired.
func NewLeaseContext(logs *LogSink) *LeaseContext {
	return &LeaseContext{
		phase:         jumpstarterv1.StatusAvailable,
		statusMessage: "Available for new lease",
		logs:          logs,
	}
}

// Begin records the lease identity and moves the phase to
// BEFORE_LEASE_HOOK, ahead of the hook runner actually starting, so a
// GetStatus racing the startup window reports the right phase.
func (l *LeaseContext) Begin(leaseName, clientName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leaseName = leaseName
	l.clientName = clientName
	l.phase = jumpstarterv1.StatusBeforeLeaseHook
	l.statusMessage = "Running beforeLease hook"
}

// SetSession installs the Session built for this lease once its driver
// tree is ready, called right before the beforeLease hook runs so the
// hook's own driver calls (made through the Unix socket) have something to
// reach.
func (l *LeaseContext) SetSession(s *session.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = s
}

// Session returns the current lease's Session, or nil if none is attached
// yet (before the lease's driver tree is built) or any more (after release).
func (l *LeaseContext) Session() *session.Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

// SetStatus transitions the phase and message, read back by GetStatus and
// appended to the log sink under the exporter-internal source tag.
func (l *LeaseContext) SetStatus(phase jumpstarterv1.ExporterStatus, message string) {
	l.mu.Lock()
	l.phase = phase
	l.statusMessage = message
	l.mu.Unlock()
	if l.logs != nil {
		l.logs.Info("exporter", message)
	}
}

// Status returns the current phase and message, answering GetStatus
// regardless of whether a Session exists.
func (l *LeaseContext) Status() (jumpstarterv1.ExporterStatus, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase, l.statusMessage
}

// Ready reports whether the exporter is in LEASE_READY, the only phase in
// which DriverCall/StreamingDriverCall/Stream are allowed to proceed.
func (l *LeaseContext) Ready() bool {
	phase, _ := l.Status()
	return phase == jumpstarterv1.StatusLeaseReady
}

// End clears lease identity and the attached Session, called once the
// afterLease hook (if any) has finished and the phase returns to AVAILABLE.
func (l *LeaseContext) End() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leaseName = ""
	l.clientName = ""
	l.session = nil
	l.phase = jumpstarterv1.StatusAvailable
	l.statusMessage = "Available for new lease"
}

// LeaseName and ClientName report the identity of the lease currently
// occupying this context, used to populate hook environment variables.
func (l *LeaseContext) LeaseName() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.leaseName
}

func (l *LeaseContext) ClientName() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.clientName
}
