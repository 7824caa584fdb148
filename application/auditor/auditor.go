package auditor

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/keytrace/keytrace-go/application"
	"github.com/keytrace/keytrace-go/application/testutil"
	"github.com/keytrace/keytrace-go/protocol"
	"github.com/keytrace/keytrace-go/protocol/auditor"
)

// An AuditDaemon audits a single keytrace directory on a fixed
// schedule. The replayed log lives in memory only, so a restarted
// daemon re-audits the directory's full history before signing
// anything again.
type AuditDaemon struct {
	conf    *Config
	logger  *application.Logger
	auditor *auditor.Auditor

	stop     chan struct{}
	waitStop sync.WaitGroup
}

// NewAuditDaemon creates a new audit daemon from the given
// configuration.
func NewAuditDaemon(conf *Config) *AuditDaemon {
	state := auditor.New(conf.SigningPubKey, conf.VRFPubKey, nil, nil)
	return &AuditDaemon{
		conf:    conf,
		logger:  application.NewLogger(conf.Logger),
		auditor: auditor.NewAuditor(state, conf.signKey),
		stop:    make(chan struct{}),
	}
}

// Run starts the audit schedule. It audits once immediately, then
// once per poll interval until Shutdown is called.
func (ad *AuditDaemon) Run() {
	ad.waitStop.Add(1)
	go func() {
		defer ad.waitStop.Done()
		ad.logger.Info("Auditing", "address", ad.conf.Address)
		timer := time.NewTimer(time.Duration(ad.conf.PollInterval) * time.Second)
		defer timer.Stop()
		for {
			if err := ad.auditRound(); err != nil {
				ad.logger.Error(err.Error())
			}
			select {
			case <-ad.stop:
				return
			case <-timer.C:
				timer.Reset(time.Duration(ad.conf.PollInterval) * time.Second)
			}
		}
	}()
}

// Shutdown stops the audit schedule.
func (ad *AuditDaemon) Shutdown() error {
	close(ad.stop)
	ad.waitStop.Wait()
	return nil
}

// auditRound replays everything the directory appended since the
// last round, and pushes the auditor's freshly signed head once the
// replay is verified. A round against a caught-up directory still
// pushes, so the distributed auditor head keeps a fresh timestamp.
func (ad *AuditDaemon) auditRound() error {
	for {
		rev, err := ad.send(ad.auditor.AuditRequest(ad.conf.PageSize))
		if err != nil {
			return err
		}
		msg := application.UnmarshalResponse(protocol.AuditType, rev)
		if msg.Error == protocol.ReqEmptyLog {
			// nothing appended yet
			return nil
		}
		if msg.Error == protocol.ReqStalePosition {
			// no entries since the last round
			break
		}
		more, err := ad.auditor.ProcessEntries(msg)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}

	push := ad.auditor.SignedHead()
	if push == nil {
		return nil
	}
	rev, err := ad.send(push)
	if err != nil {
		return err
	}
	if err := ad.auditor.CheckObservedHead(
		application.UnmarshalResponse(protocol.AuditorHeadType, rev)); err != nil {
		return err
	}
	ad.logger.Info("Signed head accepted", "size", ad.auditor.Size())
	return nil
}

func (ad *AuditDaemon) send(req *protocol.Request) ([]byte, error) {
	msg, err := application.MarshalRequest(req)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(ad.conf.Address)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "tcp":
		return testutil.NewTCPClient(msg, ad.conf.Address)
	case "unix":
		return testutil.NewUnixClient(msg, ad.conf.Address)
	default:
		return nil, fmt.Errorf("Invalid server address: %s", ad.conf.Address)
	}
}
