package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/gosuri/uiprogress"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	migrateLive           = 1
	migratePeerToPeer     = 2
	migrateTunnelled      = 4
	migratePersistDest    = 8
	migrateUndefineSource = 16
	migratePaused         = 32

	defaultPollInterval = 500 * time.Millisecond
)

// MigrateOptions describe a migration job.
type MigrateOptions struct {
	DestURI        string
	Live           bool
	PeerToPeer     bool
	Tunnelled      bool
	Persistent     bool
	UndefineSource bool
	Suspend        bool

	// Timeout suspends the domain once the live migration has run this
	// long. Zero disables it.
	Timeout time.Duration
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
	// Interrupted reports, and clears, a pending user interrupt. The job
	// is aborted when it returns true.
	Interrupted func() bool
	// PollInterval overrides how often the job is checked.
	PollInterval time.Duration
}

func (o MigrateOptions) flags() libvirt.DomainMigrateFlags {
	var f libvirt.DomainMigrateFlags
	if o.Live {
		f |= migrateLive
	}
	if o.PeerToPeer {
		f |= migratePeerToPeer
	}
	if o.Tunnelled {
		f |= migrateTunnelled
	}
	if o.Persistent {
		f |= migratePersistDest
	}
	if o.UndefineSource {
		f |= migrateUndefineSource
	}
	if o.Suspend {
		f |= migratePaused
	}
	return f
}

// ErrOfflineTimeout is returned when a timeout is requested for a
// migration that is not live.
var ErrOfflineTimeout = errors.New("migrate: Unexpected timeout for offline migration")

// Migrate runs the migration in a worker goroutine and watches it until
// the worker returns. The worker is always joined before Migrate returns.
func Migrate(ctx context.Context, lv migrationClient, dom libvirt.Domain, opts MigrateOptions) error {
	if opts.Timeout > 0 && !opts.Live {
		return ErrOfflineTimeout
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	var group errgroup.Group
	group.Go(func() error {
		_, err := lv.DomainMigratePerform3Params(dom, libvirt.OptString{opts.DestURI}, []libvirt.TypedParam{}, []byte{}, opts.flags())
		return err
	})
	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()

	var (
		progress *uiprogress.Progress
		bar      *uiprogress.Bar
	)
	if opts.Progress != nil {
		progress = uiprogress.New()
		progress.Out = opts.Progress
		bar = progress.AddBar(100).AppendCompleted()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Migration:"
		})
		progress.Start()
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	start := time.Now()
	timeout := opts.Timeout
	cancelled := ctx.Done()

	for {
		select {
		case err := <-done:
			if progress != nil {
				if err == nil {
					bar.Set(100)
				}
				progress.Stop()
			}
			if err != nil {
				return fmt.Errorf("migration of %s failed: %w", dom.Name, err)
			}
			return nil

		case <-cancelled:
			cancelled = nil
			abortJob(lv, dom)

		case <-ticker.C:
			if opts.Interrupted != nil && opts.Interrupted() {
				abortJob(lv, dom)
			}
			if timeout > 0 && time.Since(start) >= timeout {
				log.Debugf("migration of %s timed out, suspending the domain", dom.Name)
				if err := lv.DomainSuspend(dom); err != nil {
					log.Warnf("failed to suspend domain %s: %v", dom.Name, err)
				}
				timeout = 0
			}
			if bar != nil {
				_, _, _, total, _, remaining, _, _, _, _, _, _, err := lv.DomainGetJobInfo(dom)
				if err == nil && total > 0 && remaining <= total {
					_ = bar.Set(int(100 - remaining*100/total))
				}
			}
		}
	}
}

func abortJob(lv migrationClient, dom libvirt.Domain) {
	log.Debugf("aborting migration job of %s", dom.Name)
	if err := lv.DomainAbortJob(dom); err != nil {
		log.Warnf("failed to abort migration job of %s: %v", dom.Name, err)
	}
}
