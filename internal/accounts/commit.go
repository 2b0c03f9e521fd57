package accounts

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var errCorrelation = errors.New("appended items could not be correlated")

// Commit sends the pending lines to the kitchen in two phases: append them to
// the account, then mark the appended ids as commanded. confirmed must equal
// the number of lines the user agreed to send.
//
// When a previous attempt (possibly in another process) got past the append
// but failed to reach the kitchen, Commit only retries the send for the
// recorded ids. With nothing local to send it commands any persisted lines
// that never reached the kitchen.
func (s *Session) Commit(ctx context.Context, confirmed int) error {
	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return invalid(MsgLoadFailed)
	}
	_, _, n := s.commitTargetLocked()
	st := s.account.Status
	s.mu.Unlock()

	if n == 0 {
		return invalid(MsgNoItemsToCommit)
	}
	if st != StatusOpen {
		return invalid("account is %s", st)
	}
	if confirmed != n {
		return invalid(MsgCommitNotConfirmed, n)
	}

	done, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	items, pending, n := s.commitTargetLocked()
	s.mu.Unlock()
	// the target moved between the check and the guard
	if confirmed != n {
		return invalid(MsgCommitNotConfirmed, n)
	}

	if pending == nil {
		pending, err = s.appendItems(ctx, items)
		if err != nil {
			return err
		}
	}
	return s.sendToKitchen(ctx, pending)
}

// commitTargetLocked picks what the next Commit sends: a dispatch left
// pending, else the temp lines, else persisted lines not yet commanded.
// n is the count the user has to confirm.
func (s *Session) commitTargetLocked() (items []TempOrderItem, pending *PendingDispatch, n int) {
	switch {
	case s.pending != nil:
		p := *s.pending
		p.ItemIDs = append([]string(nil), s.pending.ItemIDs...)
		return nil, &p, len(p.ItemIDs)
	case len(s.temp) > 0:
		items = append([]TempOrderItem(nil), s.temp...)
		return items, nil, len(items)
	}
	var ids []string
	for _, it := range s.account.UncommittedItems() {
		if it.ID != "" {
			ids = append(ids, it.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil, 0
	}
	return nil, &PendingDispatch{AccountID: s.accountID, ItemIDs: ids}, len(ids)
}

// appendItems is phase A. On failure nothing local changes so the user can
// retry without re-entering the lines.
func (s *Session) appendItems(ctx context.Context, items []TempOrderItem) (*PendingDispatch, error) {
	updated, err := s.backend.AppendItems(ctx, s.accountID, items)
	if err != nil {
		return nil, classify("append items", MsgAppendFailed, MsgCommitFailed, err)
	}
	if updated == nil {
		return nil, &TransportError{Op: "append items", Message: MsgCommitFailed, Err: errCorrelation}
	}

	ids, err := CorrelateAppended(items, updated.Items)
	if err != nil {
		// the lines may be persisted; show whatever the backend has now
		s.mu.Lock()
		s.account = updated
		s.mu.Unlock()
		return nil, &TransportError{Op: "append items", Message: MsgCommitFailed, Err: err}
	}

	p := &PendingDispatch{AccountID: s.accountID, ItemIDs: ids}
	if s.opts.Dispatch != nil {
		id, err := s.opts.Dispatch.Record(ctx, s.accountID, ids)
		if err != nil {
			s.log.Warn("record pending dispatch", zap.Error(err))
		}
		p.ID = id
	}

	s.mu.Lock()
	s.account = updated
	s.mu.Unlock()
	s.log.Info("items appended", zap.Int("count", len(ids)))
	return p, nil
}

// sendToKitchen is phase B. A failure leaves the appended items persisted but
// not commanded; the dispatch stays pending so the next Commit retries it.
func (s *Session) sendToKitchen(ctx context.Context, p *PendingDispatch) error {
	p.Attempts++
	if err := s.backend.SendToKitchen(ctx, s.accountID, p.ItemIDs); err != nil {
		switch {
		case s.opts.Dispatch == nil:
		case p.ID == "":
			// not in the log yet, so a restart can still find it
			id, lerr := s.opts.Dispatch.Record(ctx, s.accountID, p.ItemIDs)
			if lerr != nil {
				s.log.Warn("record pending dispatch", zap.Error(lerr))
			}
			p.ID = id
		default:
			if lerr := s.opts.Dispatch.Attempted(ctx, p.ID); lerr != nil {
				s.log.Warn("record dispatch attempt", zap.Error(lerr))
			}
		}
		s.mu.Lock()
		s.pending = p
		s.mu.Unlock()
		s.log.Warn("send to kitchen failed", zap.Strings("item_ids", p.ItemIDs), zap.Error(err))
		return classify("send to kitchen", MsgCommitFailed, MsgCommitFailed, err)
	}

	if s.opts.Dispatch != nil && p.ID != "" {
		if err := s.opts.Dispatch.MarkSent(ctx, p.ID); err != nil {
			s.log.Warn("mark dispatch sent", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.temp = nil
	s.pending = nil
	s.mu.Unlock()

	s.refresh(ctx, nil)
	s.publishCommanded(ctx, p.ItemIDs)
	s.log.Info("items commanded", zap.Int("count", len(p.ItemIDs)))
	return nil
}

func (s *Session) publishCommanded(ctx context.Context, ids []string) {
	if s.opts.Publisher == nil {
		return
	}
	a := s.Account()
	if a == nil {
		return
	}
	payload := ItemsCommandedPayload{
		AccountID:    a.ID,
		TicketNumber: a.TicketNumber,
		Table:        a.Table,
		Server:       a.Server,
		Subtotal:     a.Subtotal,
	}
	for _, id := range ids {
		it, ok := a.Item(id)
		if !ok {
			continue
		}
		payload.Lines = append(payload.Lines, CommandedLine{
			ItemID:      it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Extras:      it.Extras,
			Comments:    it.Comments,
		})
	}
	if err := s.opts.Publisher.ItemsCommanded(ctx, payload); err != nil {
		s.log.Error("publish commanded items", zap.Error(err))
	}
}

// CorrelateAppended finds the persisted ids of the submitted lines inside the
// account's updated item list.
//
// If the backend echoed every clientRef the match is by token. Otherwise the
// append is assumed all-or-nothing and order-preserving, so the new items are
// exactly the last len(submitted) entries, in order.
func CorrelateAppended(submitted []TempOrderItem, returned []AccountItem) ([]string, error) {
	n := len(submitted)
	if ids, ok := correlateByRef(submitted, returned); ok {
		return ids, nil
	}
	if len(returned) < n {
		return nil, fmt.Errorf("%w: %d submitted, %d returned", errCorrelation, n, len(returned))
	}
	ids := make([]string, 0, n)
	for _, it := range returned[len(returned)-n:] {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: appended item without id", errCorrelation)
		}
		ids = append(ids, it.ID)
	}
	return ids, nil
}

func correlateByRef(submitted []TempOrderItem, returned []AccountItem) ([]string, bool) {
	byRef := make(map[string]string, len(returned))
	for _, it := range returned {
		if it.ClientRef != "" && it.ID != "" {
			byRef[it.ClientRef] = it.ID
		}
	}
	if len(byRef) == 0 {
		return nil, false
	}
	ids := make([]string, 0, len(submitted))
	for _, t := range submitted {
		id, ok := byRef[t.ClientRef]
		if t.ClientRef == "" || !ok {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
