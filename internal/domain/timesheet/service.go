package timesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"timesheets/internal/domain/auth"
)

const maxSwapAttempts = 3

type Service struct {
	Store       StoreAPI
	Directory   Directory
	Audit       AuditRecorder
	Events      Publisher
	Permissions Permissions
	Now         func() time.Time
	Concurrency int
}

func NewService(store StoreAPI, dir Directory, audit AuditRecorder, events Publisher) *Service {
	return &Service{
		Store:       store,
		Directory:   dir,
		Audit:       audit,
		Events:      events,
		Permissions: auth.StaticPermissions{},
		Now:         time.Now,
		Concurrency: 4,
	}
}

type WeekView struct {
	Week     WeekGroup `json:"week"`
	Warnings []Warning `json:"warnings"`
}

// ResolveActor looks up the caller's organisation-wide read grant and fills
// in the employee id from the directory when the identity token does not
// carry one.
func (s *Service) ResolveActor(ctx context.Context, userID, role, employeeID string) (Actor, error) {
	actor := Actor{UserID: userID, Role: role, EmployeeID: strings.TrimSpace(employeeID)}
	if s.Permissions != nil && role != "" {
		readAll, err := s.Permissions.HasPermission(ctx, role, auth.PermTimesheetReadAll)
		if err != nil {
			return actor, fmt.Errorf("check %s grant for role %s: %w", auth.PermTimesheetReadAll, role, err)
		}
		actor.ReadAll = readAll
	}
	if actor.EmployeeID != "" || s.Directory == nil || userID == "" {
		return actor, nil
	}
	id, err := s.Directory.EmployeeIDByUserID(ctx, userID)
	if err != nil {
		return actor, fmt.Errorf("resolve employee for user %s: %w", userID, err)
	}
	actor.EmployeeID = id
	return actor, nil
}

// Save validates one draft and upserts it. Week-level warnings are returned
// alongside the saved entry and never block the save.
func (s *Service) Save(ctx context.Context, actor Actor, draft Draft) (Entry, []Warning, error) {
	draft = ownDraft(actor, draft)
	if err := authorizeOwner(actor, draft.EmployeeID); err != nil {
		return Entry{}, nil, err
	}
	catalog, err := s.catalogFor(ctx, draft.TaskID)
	if err != nil {
		return Entry{}, nil, err
	}
	entry, res := Validate(draft, catalog)
	if err := res.Err(); err != nil {
		return Entry{}, nil, err
	}

	var before *Entry
	if entry.ID != "" {
		current, err := s.Store.GetByID(ctx, entry.ID)
		if err != nil {
			return Entry{}, nil, err
		}
		if current.EmployeeID != entry.EmployeeID {
			return Entry{}, nil, ErrUnauthorized
		}
		if _, err := Apply(current, Transition{Event: EventEdit, Actor: actor}, nil); err != nil {
			return Entry{}, nil, err
		}
		before = &current
	}

	saved, err := s.Store.Upsert(ctx, entry)
	if err != nil {
		return Entry{}, nil, err
	}
	s.record(ctx, actor, ActionSave, before, saved)
	s.publish(ctx, ActionSave, actor, saved)

	warnings := []Warning{}
	week, err := s.Store.GetByWeek(ctx, saved.EmployeeID, saved.WeekStartDate)
	if err != nil {
		slog.Warn("week warnings lookup failed", "err", err)
		return saved, warnings, nil
	}
	if w := WeekWarnings(WeekTotal(week)); w != nil {
		warnings = w
	}
	return saved, warnings, nil
}

// ValidateDrafts is a dry run of the validation engine over sibling drafts.
func (s *Service) ValidateDrafts(ctx context.Context, actor Actor, drafts []Draft) (WeekReport, error) {
	taskIDs := make([]string, 0, len(drafts))
	for i := range drafts {
		drafts[i] = ownDraft(actor, drafts[i])
		taskIDs = append(taskIDs, drafts[i].TaskID)
	}
	catalog, err := s.catalogFor(ctx, taskIDs...)
	if err != nil {
		return WeekReport{}, err
	}
	return ValidateWeek(drafts, catalog), nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (Entry, error) {
	entry, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if err := s.authorizeView(ctx, actor, entry.EmployeeID); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (s *Service) Week(ctx context.Context, actor Actor, employeeID string, weekStart time.Time) (WeekView, error) {
	employeeID = defaultEmployee(actor, employeeID)
	if err := s.authorizeView(ctx, actor, employeeID); err != nil {
		return WeekView{}, err
	}
	entries, err := s.Store.GetByWeek(ctx, employeeID, weekStart)
	if err != nil {
		return WeekView{}, err
	}

	group := WeekGroup{EmployeeID: employeeID, WeekStartDate: weekStart, Timesheets: entries}
	if group.Timesheets == nil {
		group.Timesheets = []Entry{}
	}
	fillGroup(&group)
	group.EmployeeName = s.displayNames(ctx, []string{employeeID})[employeeID]

	view := WeekView{Week: group, Warnings: CheckWeek(entries)}
	if view.Warnings == nil {
		view.Warnings = []Warning{}
	}
	return view, nil
}

func (s *Service) List(ctx context.Context, actor Actor, filter ListFilter) ([]Entry, error) {
	filter, err := s.scope(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return s.Store.List(ctx, filter)
}

// History returns the week groups of the scoped entries, newest first.
func (s *Service) History(ctx context.Context, actor Actor, filter ListFilter) ([]WeekGroup, error) {
	entries, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	groups := GroupByWeek(entries)
	return WithNames(groups, s.displayNames(ctx, employeeIDs(groups))), nil
}

// ApprovalQueue lists submitted entries the actor may review.
func (s *Service) ApprovalQueue(ctx context.Context, actor Actor, filter ListFilter) (ApprovalQueue, error) {
	filter.Status = StatusSubmitted
	switch {
	case actor.Privileged():
	case actor.IsManager():
		reports, err := s.directReports(ctx, actor.EmployeeID)
		if err != nil {
			return ApprovalQueue{}, err
		}
		if filter.EmployeeID != "" {
			if !contains(reports, filter.EmployeeID) {
				return ApprovalQueue{}, ErrUnauthorized
			}
		} else if len(reports) == 0 {
			return BuildApprovalQueue(nil), nil
		} else {
			filter.EmployeeIDs = reports
		}
	default:
		return ApprovalQueue{}, ErrUnauthorized
	}

	entries, err := s.Store.List(ctx, filter)
	if err != nil {
		return ApprovalQueue{}, err
	}
	queue := BuildApprovalQueue(entries)
	queue.Weeks = WithNames(queue.Weeks, s.displayNames(ctx, employeeIDs(queue.Weeks)))
	return queue, nil
}

func (s *Service) StatusSummary(ctx context.Context, actor Actor, filter ListFilter) ([]StatusTotals, error) {
	filter.Limit, filter.Offset = 0, 0
	entries, err := s.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}
	return SummarizeByStatus(entries), nil
}

func (s *Service) Submit(ctx context.Context, actor Actor, id string) (Entry, error) {
	entry, _, err := s.transition(ctx, actor, id, EventSubmit, "", false)
	return entry, err
}

func (s *Service) Resubmit(ctx context.Context, actor Actor, id string) (Entry, error) {
	entry, _, err := s.transition(ctx, actor, id, EventResubmit, "", false)
	return entry, err
}

func (s *Service) Approve(ctx context.Context, actor Actor, id, comments string) (Entry, error) {
	entry, _, err := s.transition(ctx, actor, id, EventApprove, comments, false)
	return entry, err
}

func (s *Service) Reject(ctx context.Context, actor Actor, id, comments string) (Entry, error) {
	entry, _, err := s.transition(ctx, actor, id, EventReject, comments, false)
	return entry, err
}

// transition applies event to the stored entry with a compare-and-swap on
// status. A lost race re-reads the entry and evaluates the event again
// against the new state. When allowNoop is set an entry already in the
// target state is reported as a no-op.
func (s *Service) transition(ctx context.Context, actor Actor, id string, event Event, comments string, allowNoop bool) (Entry, bool, error) {
	target, _ := TargetStatus(event)
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		current, err := s.Store.GetByID(ctx, id)
		if err != nil {
			return Entry{}, false, err
		}
		if err := s.authorizeTransition(ctx, actor, event, current); err != nil {
			return current, false, err
		}
		if allowNoop && current.Status == target {
			return current, true, nil
		}

		var catalog TaskIndex
		if event == EventSubmit || event == EventResubmit {
			if catalog, err = s.catalogFor(ctx, current.TaskID); err != nil {
				return current, false, err
			}
		}
		next, err := Apply(current, Transition{Event: event, Actor: actor, Comments: comments, At: s.now()}, catalog)
		if err != nil {
			return current, false, err
		}

		saved, err := s.Store.CompareAndSwap(ctx, next, current.Status)
		if errors.Is(err, ErrStaleStatus) {
			continue
		}
		if err != nil {
			return current, false, err
		}
		action := actionFor(event)
		s.record(ctx, actor, action, &current, saved)
		s.publish(ctx, action, actor, saved)
		return saved, false, nil
	}
	return Entry{}, false, fmt.Errorf("%s timesheet %s: %w", event, id, ErrStaleStatus)
}

func (s *Service) authorizeTransition(ctx context.Context, actor Actor, event Event, e Entry) error {
	switch event {
	case EventSubmit, EventResubmit:
		return authorizeOwner(actor, e.EmployeeID)
	case EventApprove, EventReject:
		if isOwner(actor, e) {
			return ErrUnauthorized
		}
		return s.authorizeReview(ctx, actor, e.EmployeeID)
	}
	return nil
}

func authorizeOwner(actor Actor, employeeID string) error {
	if actor.Privileged() || employeeID == actor.EmployeeID {
		return nil
	}
	return ErrUnauthorized
}

func (s *Service) authorizeReview(ctx context.Context, actor Actor, employeeID string) error {
	if actor.Privileged() {
		return nil
	}
	if !actor.IsManager() || s.Directory == nil {
		return ErrUnauthorized
	}
	ok, err := s.Directory.IsManagerOf(ctx, actor.EmployeeID, employeeID)
	if err != nil {
		return fmt.Errorf("check reporting line: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) authorizeView(ctx context.Context, actor Actor, employeeID string) error {
	if employeeID != "" && employeeID == actor.EmployeeID {
		return nil
	}
	return s.authorizeReview(ctx, actor, employeeID)
}

// scope narrows a list filter to what the actor may see.
func (s *Service) scope(ctx context.Context, actor Actor, filter ListFilter) (ListFilter, error) {
	if filter.EmployeeID != "" {
		return filter, s.authorizeView(ctx, actor, filter.EmployeeID)
	}
	if actor.Privileged() {
		return filter, nil
	}
	if actor.EmployeeID == "" {
		return filter, ErrUnauthorized
	}
	filter.EmployeeID = actor.EmployeeID
	return filter, nil
}

func (s *Service) directReports(ctx context.Context, managerEmployeeID string) ([]string, error) {
	if s.Directory == nil || managerEmployeeID == "" {
		return nil, nil
	}
	reports, err := s.Directory.DirectReports(ctx, managerEmployeeID)
	if err != nil {
		return nil, fmt.Errorf("list direct reports: %w", err)
	}
	return reports, nil
}

// catalogFor loads the task catalog for the given tasks. Without a directory
// the task/project pairing is not checked.
func (s *Service) catalogFor(ctx context.Context, taskIDs ...string) (TaskIndex, error) {
	if s.Directory == nil {
		return nil, nil
	}
	unique := make([]string, 0, len(taskIDs))
	for _, id := range taskIDs {
		id = strings.TrimSpace(id)
		if id != "" && !contains(unique, id) {
			unique = append(unique, id)
		}
	}
	catalog, err := s.Directory.TaskCatalog(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("load task catalog: %w", err)
	}
	return catalog, nil
}

func (s *Service) displayNames(ctx context.Context, ids []string) map[string]string {
	if s.Directory == nil || len(ids) == 0 {
		return map[string]string{}
	}
	names, err := s.Directory.DisplayNames(ctx, ids)
	if err != nil {
		slog.Warn("display name lookup failed", "err", err)
		return map[string]string{}
	}
	return names
}

func (s *Service) record(ctx context.Context, actor Actor, action string, before *Entry, after Entry) {
	if s.Audit == nil {
		return
	}
	var prior any
	if before != nil {
		prior = before
	}
	if err := s.Audit.Record(ctx, actor.UserID, action, EntityType, after.ID, prior, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func (s *Service) publish(ctx context.Context, action string, actor Actor, e Entry) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, newEntryEvent(action, actor, e, s.now())); err != nil {
		slog.Warn("publish "+action+" failed", "err", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func actionFor(event Event) string {
	switch event {
	case EventSubmit:
		return ActionSubmit
	case EventResubmit:
		return ActionResubmit
	case EventApprove:
		return ActionApprove
	case EventReject:
		return ActionReject
	}
	return ActionSave
}

func ownDraft(actor Actor, d Draft) Draft {
	d.EmployeeID = defaultEmployee(actor, d.EmployeeID)
	if d.Source == "" {
		d.Source = SourceUser
	}
	return d
}

func defaultEmployee(actor Actor, employeeID string) string {
	if employeeID = strings.TrimSpace(employeeID); employeeID != "" {
		return employeeID
	}
	return actor.EmployeeID
}

func employeeIDs(groups []WeekGroup) []string {
	var out []string
	for _, g := range groups {
		if !contains(out, g.EmployeeID) {
			out = append(out, g.EmployeeID)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
