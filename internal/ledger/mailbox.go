package ledger

import (
	"context"
	"time"

	"labtable/internal/domain"
)

type request struct {
	run  func()
	done chan struct{}
}

// mailbox owns all store writes of one account while it is registered.
type mailbox struct {
	accountID string
	inbox     chan *request
	// closed once the mailbox has left the registry; it accepts nothing afterwards.
	retired chan struct{}
}

// call runs fn inside accountID's mailbox and waits for its result. A request
// whose context ends before the mailbox picks it up is not run. Once picked up
// it runs to completion with a context that is no longer cancelable.
func call[T any](l *Ledger, ctx context.Context, accountID string, fn func(context.Context) (T, error)) (T, error) {
	var (
		val T
		err error
	)
	req := &request{
		done: make(chan struct{}),
		run: func() {
			if cerr := ctx.Err(); cerr != nil {
				err = cerr
				return
			}
			val, err = fn(context.WithoutCancel(ctx))
		},
	}

	for {
		mb, merr := l.mailboxFor(accountID)
		if merr != nil {
			return val, merr
		}
		select {
		case mb.inbox <- req:
			<-req.done
			return val, err
		case <-mb.retired:
			// Retired between lookup and send; the next lookup starts a fresh one.
		case <-ctx.Done():
			return val, ctx.Err()
		case <-l.stop:
			return val, domain.ErrLedgerClosed
		}
	}
}

func (l *Ledger) mailboxFor(accountID string) (*mailbox, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, domain.ErrLedgerClosed
	}
	if mb, ok := l.boxes[accountID]; ok {
		return mb, nil
	}
	mb := &mailbox{
		accountID: accountID,
		inbox:     make(chan *request),
		retired:   make(chan struct{}),
	}
	l.boxes[accountID] = mb
	l.wg.Add(1)
	go l.serve(mb)
	return mb, nil
}

func (l *Ledger) serve(mb *mailbox) {
	defer l.wg.Done()

	idle := time.NewTimer(l.cfg.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case req := <-mb.inbox:
			req.run()
			close(req.done)
			idle.Reset(l.cfg.IdleTimeout)
		case <-idle.C:
			// inbox is unbuffered, so nothing is queued here; senders still
			// selecting on it observe retired and go back to the registry.
			l.mu.Lock()
			delete(l.boxes, mb.accountID)
			close(mb.retired)
			l.mu.Unlock()
			return
		case <-l.stop:
			l.mu.Lock()
			delete(l.boxes, mb.accountID)
			close(mb.retired)
			l.mu.Unlock()
			return
		}
	}
}

// activeMailboxes reports how many accounts currently have a mailbox.
func (l *Ledger) activeMailboxes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.boxes)
}
