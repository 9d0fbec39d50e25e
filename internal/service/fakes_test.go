package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/gateway"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type fakePosts struct {
	mu    sync.Mutex
	posts map[int64]*models.Post
	next  int64
	// errs fails the next call of the named method once.
	errs map[string]error
}

func (f *fakePosts) failNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = map[string]error{}
	}
	f.errs[method] = err
}

// takeErr must be called with mu held.
func (f *fakePosts) takeErr(method string) error {
	err := f.errs[method]
	delete(f.errs, method)
	return err
}

func newFakePosts(posts ...*models.Post) *fakePosts {
	f := &fakePosts{posts: map[int64]*models.Post{}, next: 100}
	for _, p := range posts {
		f.posts[p.ID] = clonePost(p)
	}
	return f
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.FailureReasons = models.StringMap{}
	for k, v := range p.FailureReasons {
		c.FailureReasons[k] = v
	}
	return &c
}

func (f *fakePosts) get(id int64) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[id]
}

func (f *fakePosts) Create(_ context.Context, post *models.Post) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	c := clonePost(post)
	c.ID = f.next
	f.posts[c.ID] = c
	return c.ID, nil
}

func (f *fakePosts) GetByID(_ context.Context, id int64) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (f *fakePosts) GetByUserID(_ context.Context, userID, tenantID int64) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for _, p := range f.posts {
		if p.UserID == userID && p.TenantID == tenantID {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (f *fakePosts) CheckByUserID(_ context.Context, postID, userID, tenantID int64) (bool, error) {
	p := f.get(postID)
	return p != nil && p.UserID == userID && p.TenantID == tenantID, nil
}

func (f *fakePosts) UpdatePostStatus(_ context.Context, status string, postID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("UpdatePostStatus"); err != nil {
		return err
	}
	if p, ok := f.posts[postID]; ok {
		p.Status = status
	}
	return nil
}

func (f *fakePosts) UpdateOutcome(_ context.Context, postID int64, status string, failures models.StringMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.posts[postID]; ok {
		p.Status = status
		p.FailureReasons = models.StringMap{}
		for k, v := range failures {
			p.FailureReasons[k] = v
		}
	}
	return nil
}

func (f *fakePosts) UpdateSchedule(_ context.Context, postID int64, scheduledTime *time.Time, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.posts[postID]; ok {
		p.ScheduledTime = scheduledTime
		p.Status = status
	}
	return nil
}

func (f *fakePosts) SetPlatformFailure(_ context.Context, postID int64, platform, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("SetPlatformFailure"); err != nil {
		return err
	}
	if p, ok := f.posts[postID]; ok {
		p.FailureReasons[platform] = reason
	}
	return nil
}

func (f *fakePosts) ClearPlatformFailure(_ context.Context, postID int64, platform string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeErr("ClearPlatformFailure"); err != nil {
		return err
	}
	if p, ok := f.posts[postID]; ok {
		delete(p.FailureReasons, platform)
	}
	return nil
}

func (f *fakePosts) Remove(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.posts, id)
	return nil
}

type fakeRecords struct {
	mu      sync.Mutex
	records map[int64]*models.PublishRecord
	next    int64
}

func newFakeRecords(records ...*models.PublishRecord) *fakeRecords {
	f := &fakeRecords{records: map[int64]*models.PublishRecord{}}
	for _, r := range records {
		c := *r
		f.records[r.ID] = &c
		if r.ID > f.next {
			f.next = r.ID
		}
	}
	return f
}

func (f *fakeRecords) byPlatform(postID int64, platform string) *models.PublishRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.PostID == postID && r.Platform == platform {
			c := *r
			return &c
		}
	}
	return nil
}

func (f *fakeRecords) count(postID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.PostID == postID {
			n++
		}
	}
	return n
}

func (f *fakeRecords) Upsert(_ context.Context, rec *models.PublishRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.records {
		if r.PostID == rec.PostID && r.Platform == rec.Platform {
			c := *rec
			c.ID = id
			f.records[id] = &c
			rec.ID = id
			return id, nil
		}
	}
	f.next++
	c := *rec
	c.ID = f.next
	f.records[c.ID] = &c
	rec.ID = c.ID
	return c.ID, nil
}

func (f *fakeRecords) GetByID(_ context.Context, id int64) (*models.PublishRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (f *fakeRecords) GetByPostAndPlatform(_ context.Context, postID int64, platform string) (*models.PublishRecord, error) {
	return f.byPlatform(postID, platform), nil
}

func (f *fakeRecords) ListByPostID(_ context.Context, postID int64) ([]*models.PublishRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PublishRecord
	for _, r := range f.records {
		if r.PostID == postID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (f *fakeRecords) SucceededPlatforms(ctx context.Context, postID int64) ([]string, error) {
	records, _ := f.ListByPostID(ctx, postID)
	var out []string
	for _, r := range records {
		if r.Succeeded() {
			out = append(out, r.Platform)
		}
	}
	return out, nil
}

func (f *fakeRecords) pendingMatch(id int64, pendingID string) (*models.PublishRecord, bool) {
	r, ok := f.records[id]
	if !ok || r.PendingOperationID == nil || *r.PendingOperationID != pendingID {
		return nil, false
	}
	return r, true
}

func (f *fakeRecords) UpdatePollingStatus(_ context.Context, id int64, pendingID, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.pendingMatch(id, pendingID); ok {
		r.PollingStatus = label
	}
	return nil
}

func (f *fakeRecords) Finalize(_ context.Context, id int64, pendingID string, fin repository.Finalization) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pendingMatch(id, pendingID)
	if !ok {
		return false, nil
	}
	r.PlatformPostID = fin.PlatformPostID
	r.PlatformPostURL = fin.PlatformPostURL
	r.PollingStatus = fin.PollingStatus
	r.Status = models.RecordStatusPublished
	at := fin.PublishedAt
	r.PublishedAt = &at
	r.PendingOperationID = nil
	return true, nil
}

func (f *fakeRecords) MarkFailed(_ context.Context, id int64, pendingID, label, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pendingMatch(id, pendingID)
	if !ok {
		return false, nil
	}
	r.PollingStatus = label
	r.Status = models.RecordStatusFailed
	r.ErrorMessage = reason
	r.PendingOperationID = nil
	return true, nil
}

func (f *fakeRecords) ListStalePending(_ context.Context, before time.Time, limit int) ([]*models.PublishRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PublishRecord
	for _, r := range f.records {
		if r.IsPending() && r.UpdatedAt.Before(before) && len(out) < limit {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeCreds struct {
	missing map[string]bool
}

func (f fakeCreds) GetAccessToken(_ context.Context, ref models.CredentialRef) (*Credential, error) {
	if f.missing[ref.Platform] {
		return nil, &models.CredentialError{Platform: ref.Platform, Err: models.ErrNoCredential}
	}
	return &Credential{
		AccessToken: "token-" + ref.Platform,
		Account:     gateway.Account{ID: "acct-" + ref.Platform, Username: "user_" + ref.Platform},
	}, nil
}

type passthroughMedia struct{}

func (passthroughMedia) Resolve(_ context.Context, refs []string) ([]string, error) {
	return refs, nil
}

type fakeQueue struct {
	mu        sync.Mutex
	polls     []*models.PollTask
	scheduled map[int64]time.Duration
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{scheduled: map[int64]time.Duration{}}
}

func (q *fakeQueue) EnqueuePoll(_ context.Context, task *models.PollTask) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.polls = append(q.polls, task)
	return fmt.Sprintf("poll:%d:%s", task.RecordID, task.PendingOperationID), nil
}

func (q *fakeQueue) SchedulePost(_ context.Context, payload models.ScheduledTask, delay time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduled[payload.PostID] = delay
	return fmt.Sprintf("scheduled-post:%d", payload.PostID), nil
}

func (q *fakeQueue) UnschedulePost(_ context.Context, postID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.scheduled, postID)
	return nil
}

type fakeLive struct {
	mu      sync.Mutex
	updates []PostUpdate
	err     error
}

func (l *fakeLive) Publish(_ context.Context, topic string, payload any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if u, ok := payload.(PostUpdate); ok && topic == TopicPostUpdated {
		l.updates = append(l.updates, u)
	}
	return l.err
}

func (l *fakeLive) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.updates)
}

type fakeGateway struct {
	name   string
	create func(media []string) (*gateway.PublishOutcome, error)

	mu        sync.Mutex
	calls     int
	published int
	failed    []string
	scheduled int
}

func syncGateway(name, postID string) *fakeGateway {
	return &fakeGateway{name: name, create: func([]string) (*gateway.PublishOutcome, error) {
		return &gateway.PublishOutcome{PlatformPostID: postID, PlatformPostURL: "https://" + name + ".test/" + postID}, nil
	}}
}

func failingGateway(name string, err error) *fakeGateway {
	return &fakeGateway{name: name, create: func([]string) (*gateway.PublishOutcome, error) {
		return nil, err
	}}
}

func (g *fakeGateway) Platform() string { return g.name }

func (g *fakeGateway) CreatePost(_ context.Context, _ gateway.Account, _ models.Content, _ string, media []string, _ gateway.Options) (*gateway.PublishOutcome, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.create(media)
}

func (g *fakeGateway) NotifyPublished(context.Context, *models.Post, *models.PublishRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published++
}

func (g *fakeGateway) NotifyScheduled(context.Context, *models.Post) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scheduled++
}

func (g *fakeGateway) NotifyFailed(_ context.Context, _ *models.Post, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = append(g.failed, reason)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeAsyncGateway struct {
	*fakeGateway
	statuses    []*gateway.StatusResult
	checks      int
	completion  *gateway.CompletionResult
	completeErr error
	completions int
}

func asyncGateway(name, pendingID string) *fakeAsyncGateway {
	return &fakeAsyncGateway{fakeGateway: &fakeGateway{name: name, create: func([]string) (*gateway.PublishOutcome, error) {
		return &gateway.PublishOutcome{
			PlatformPostID:     pendingID,
			PendingOperationID: pendingID,
			Metadata:           map[string]any{"publish_id": pendingID},
		}, nil
	}}}
}

func (g *fakeAsyncGateway) CheckStatus(context.Context, string, string, map[string]string) (*gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checks >= len(g.statuses) {
		return nil, fmt.Errorf("unexpected status check %d", g.checks+1)
	}
	st := g.statuses[g.checks]
	g.checks++
	return st, nil
}

func (g *fakeAsyncGateway) BuildPollingTask(record *models.PublishRecord, outcome *gateway.PublishOutcome, accessToken string, metadata map[string]string) *models.PollTask {
	if !outcome.IsPending() {
		return nil
	}
	return &models.PollTask{
		RecordID:           record.ID,
		PostID:             record.PostID,
		PendingOperationID: outcome.PendingOperationID,
		AccessToken:        accessToken,
		Platform:           g.name,
		Metadata:           metadata,
	}
}

func (g *fakeAsyncGateway) CompletePublish(context.Context, string, string, map[string]string) (*gateway.CompletionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completions++
	return g.completion, g.completeErr
}

func (g *fakeAsyncGateway) PostURL(id string, metadata map[string]string) string {
	return "https://" + g.name + ".test/@" + metadata[gateway.MetaUsername] + "/video/" + id
}

func processing(label string) *gateway.StatusResult {
	return &gateway.StatusResult{State: gateway.StateProcessing, Label: label}
}
