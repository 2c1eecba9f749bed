package timesheet

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// BulkSave validates and upserts each draft independently. A failed item never
// rolls back the others; results keep the request order.
func (s *Service) BulkSave(ctx context.Context, actor Actor, drafts []Draft) BulkResult {
	results := make([]ItemResult, len(drafts))

	taskIDs := make([]string, 0, len(drafts))
	for i := range drafts {
		drafts[i] = ownDraft(actor, drafts[i])
		taskIDs = append(taskIDs, drafts[i].TaskID)
	}
	catalog, err := s.catalogFor(ctx, taskIDs...)
	if err != nil {
		for i, d := range drafts {
			results[i] = failed(i, d.ID, err)
		}
		return tally(results)
	}

	var pending []Entry
	var positions []int
	for i, d := range drafts {
		if err := ctx.Err(); err != nil {
			results[i] = failed(i, d.ID, err)
			continue
		}
		if err := authorizeOwner(actor, d.EmployeeID); err != nil {
			results[i] = failed(i, strings.TrimSpace(d.ID), err)
			continue
		}
		entry, res := Validate(d, catalog)
		if err := res.Err(); err != nil {
			results[i] = failed(i, entry.ID, err)
			continue
		}
		if entry.ID != "" {
			current, err := s.Store.GetByID(ctx, entry.ID)
			if err == nil && current.EmployeeID != entry.EmployeeID {
				err = ErrUnauthorized
			}
			if err != nil {
				results[i] = failed(i, entry.ID, err)
				continue
			}
		}
		pending = append(pending, entry)
		positions = append(positions, i)
	}

	for j, res := range s.Store.BulkUpsert(ctx, pending) {
		i := positions[j]
		res.Index = i
		results[i] = res
		if res.Failed() {
			continue
		}
		saved := pending[j]
		saved.ID, saved.Status = res.ID, res.Status
		s.record(ctx, actor, ActionSave, nil, saved)
		s.publish(ctx, ActionSave, actor, saved)
	}
	return tally(results)
}

func (s *Service) BulkSubmit(ctx context.Context, actor Actor, ids []string) BulkResult {
	return s.bulkTransition(ctx, actor, ids, EventSubmit, "")
}

func (s *Service) BulkApprove(ctx context.Context, actor Actor, ids []string, comments string) BulkResult {
	return s.bulkTransition(ctx, actor, ids, EventApprove, comments)
}

func (s *Service) BulkReject(ctx context.Context, actor Actor, ids []string, comments string) BulkResult {
	return s.bulkTransition(ctx, actor, ids, EventReject, comments)
}

// bulkTransition applies one event to many entries with bounded concurrency.
// Entries already in the target state are reported as no-ops, so replaying a
// batch changes nothing. Items not started before ctx is done fail as
// canceled; items already committed stay committed.
func (s *Service) bulkTransition(ctx context.Context, actor Actor, ids []string, event Event, comments string) BulkResult {
	results := make([]ItemResult, len(ids))

	var g errgroup.Group
	g.SetLimit(max(s.Concurrency, 1))
	for i, raw := range ids {
		id := strings.TrimSpace(raw)
		if err := ctx.Err(); err != nil {
			results[i] = failed(i, id, err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = failed(i, id, err)
				return nil
			}
			entry, noop, err := s.transition(ctx, actor, id, event, comments, true)
			switch {
			case err != nil:
				results[i] = failed(i, id, err)
			case noop:
				results[i] = alreadyInState(i, entry)
			default:
				results[i] = succeeded(i, entry)
			}
			return nil
		})
	}
	_ = g.Wait()
	return tally(results)
}

func (r BulkResult) Noops() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeNoop {
			n++
		}
	}
	return n
}
