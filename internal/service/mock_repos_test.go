package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-portal/internal/access"
	"student-portal/internal/model"
	"student-portal/internal/repository"
	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/metrics"
	"student-portal/pkg/mq"
	"student-portal/pkg/storage"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
	order []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "user-" + user.Username
	}
	if user.Version == 0 {
		user.Version = 1
	}
	m.users[user.UserID] = user
	m.order = append(m.order, user.UserID)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, filter repository.UserFilter, offset, limit int) ([]model.User, int64, error) {
	var all []model.User
	for _, id := range m.order {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		all = append(all, *u)
	}
	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	u, ok := m.users[user.UserID]
	if !ok || u.Version != user.Version {
		return pkgerrors.ErrOptimisticLock
	}
	u.Email = user.Email
	u.FirstName = user.FirstName
	u.LastName = user.LastName
	u.Department = user.Department
	u.Version++
	user.Version = u.Version
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) CountByRole(_ context.Context, role model.Role) (int64, error) {
	var n int64
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *mockUserRepo) SetSupervisor(_ context.Context, studentID string, supervisorID *string, _ string) error {
	u, ok := m.users[studentID]
	if !ok || u.Role != model.RoleStudent {
		return gorm.ErrRecordNotFound
	}
	if supervisorID == nil {
		u.SupervisorID = nil
	} else {
		id := *supervisorID
		u.SupervisorID = &id
	}
	u.Version++
	return nil
}

func (m *mockUserRepo) ListBySupervisor(_ context.Context, supervisorID string) ([]model.User, error) {
	var result []model.User
	for _, id := range m.order {
		u, ok := m.users[id]
		if ok && u.SupervisorID != nil && *u.SupervisorID == supervisorID {
			result = append(result, *u)
		}
	}
	return result, nil
}

// ── Mock ProjectRepository ──
// CompareAndSetStatus 与数据库实现一致：状态与版本同时匹配才写入
// beforeCAS 在比较前修改存储中的项目，模拟并发写入

type mockProjectRepo struct {
	mu        sync.Mutex
	users     *mockUserRepo
	projects  map[string]*model.Project
	order     []string
	seq       int
	beforeCAS func(p *model.Project)
}

func newMockProjectRepo(users *mockUserRepo) *mockProjectRepo {
	return &mockProjectRepo{users: users, projects: make(map[string]*model.Project)}
}

func (m *mockProjectRepo) Create(_ context.Context, project *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if project.ProjectID == "" {
		project.ProjectID = fmt.Sprintf("project-%d", m.seq)
	}
	if project.Version == 0 {
		project.Version = 1
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Second)
	}
	cp := *project
	m.projects[project.ProjectID] = &cp
	m.order = append(m.order, project.ProjectID)
	return nil
}

func (m *mockProjectRepo) GetByID(_ context.Context, id string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProjectRepo) List(_ context.Context, filter repository.ProjectFilter) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var allowed map[string]bool
	if filter.StudentIDs != nil {
		allowed = make(map[string]bool, len(filter.StudentIDs))
		for _, id := range filter.StudentIDs {
			allowed[id] = true
		}
	}
	var result []model.Project
	for i := len(m.order) - 1; i >= 0; i-- {
		p, ok := m.projects[m.order[i]]
		if !ok {
			continue
		}
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if allowed != nil && !allowed[p.StudentID] {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		result = append(result, *p)
	}
	return result, nil
}

func (m *mockProjectRepo) UpdateDetails(_ context.Context, project *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[project.ProjectID]
	if !ok || p.Version != project.Version || p.Status != model.StatusPending {
		return pkgerrors.ErrOptimisticLock
	}
	project.Version++
	cp := *project
	m.projects[project.ProjectID] = &cp
	return nil
}

func (m *mockProjectRepo) CompareAndSetStatus(_ context.Context, cas repository.StatusCAS) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[cas.ProjectID]
	if ok && m.beforeCAS != nil {
		m.beforeCAS(p)
	}
	if !ok || p.Status != cas.From {
		return pkgerrors.ErrOptimisticLock
	}
	if cas.ExpectedVersion != nil && p.Version != *cas.ExpectedVersion {
		return pkgerrors.ErrOptimisticLock
	}
	p.Status = cas.To
	p.Version++
	return nil
}

func (m *mockProjectRepo) SetEndDate(_ context.Context, id string, endDate time.Time, expectedVersion int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.Version != expectedVersion {
		return pkgerrors.ErrOptimisticLock
	}
	p.EndDate = &endDate
	p.Version++
	return nil
}

func (m *mockProjectRepo) Delete(_ context.Context, id string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

func (m *mockProjectRepo) ReassignSupervisor(_ context.Context, studentID string, supervisorID *string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.projects {
		if p.StudentID != studentID || p.Status.IsTerminal() {
			continue
		}
		if supervisorID == nil {
			p.SupervisorID = nil
		} else {
			id := *supervisorID
			p.SupervisorID = &id
		}
		n++
	}
	return n, nil
}

func (m *mockProjectRepo) FillMissingSupervisors(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.projects {
		if p.SupervisorID != nil {
			continue
		}
		if u, ok := m.users.users[p.StudentID]; ok && u.SupervisorID != nil {
			id := *u.SupervisorID
			p.SupervisorID = &id
			n++
		}
	}
	return n, nil
}

func (m *mockProjectRepo) CountByStatus(_ context.Context) (map[model.ProjectStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[model.ProjectStatus]int64, len(model.ProjectStatuses))
	for _, st := range model.ProjectStatuses {
		result[st] = 0
	}
	for _, p := range m.projects {
		result[p.Status]++
	}
	return result, nil
}

func (m *mockProjectRepo) status(id string) model.ProjectStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok {
		return p.Status
	}
	return ""
}

// ── Mock ProgressUpdateRepository ──

type mockProgressRepo struct {
	updates []model.ProgressUpdate
}

func newMockProgressRepo() *mockProgressRepo { return &mockProgressRepo{} }

func (m *mockProgressRepo) Create(_ context.Context, update *model.ProgressUpdate) error {
	update.ProgressUpdateID = fmt.Sprintf("progress-%d", len(m.updates)+1)
	m.updates = append(m.updates, *update)
	return nil
}

func (m *mockProgressRepo) ListByProject(_ context.Context, projectID string) ([]model.ProgressUpdate, error) {
	var result []model.ProgressUpdate
	for _, u := range m.updates {
		if u.ProjectID == projectID {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockProgressRepo) ListByProjectAndWeek(_ context.Context, projectID string, week int) ([]model.ProgressUpdate, error) {
	var result []model.ProgressUpdate
	for _, u := range m.updates {
		if u.ProjectID == projectID && u.WeekNumber == week {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockProgressRepo) CountByProject(ctx context.Context, projectID string) (int64, error) {
	list, _ := m.ListByProject(ctx, projectID)
	return int64(len(list)), nil
}

// ── Mock EvaluationRepository ──

type mockEvaluationRepo struct {
	evaluations []model.Evaluation
	seq         int
}

func newMockEvaluationRepo() *mockEvaluationRepo { return &mockEvaluationRepo{} }

func (m *mockEvaluationRepo) Create(_ context.Context, evaluation *model.Evaluation) error {
	m.seq++
	evaluation.EvaluationID = fmt.Sprintf("evaluation-%d", m.seq)
	m.evaluations = append(m.evaluations, *evaluation)
	return nil
}

func (m *mockEvaluationRepo) GetByID(_ context.Context, id string) (*model.Evaluation, error) {
	for _, e := range m.evaluations {
		if e.EvaluationID == id {
			cp := e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEvaluationRepo) Update(_ context.Context, evaluation *model.Evaluation) error {
	for i := range m.evaluations {
		if m.evaluations[i].EvaluationID == evaluation.EvaluationID {
			m.evaluations[i].FinalScore = evaluation.FinalScore
			m.evaluations[i].FinalComment = evaluation.FinalComment
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockEvaluationRepo) Delete(_ context.Context, id string) error {
	for i := range m.evaluations {
		if m.evaluations[i].EvaluationID == id {
			m.evaluations = append(m.evaluations[:i], m.evaluations[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockEvaluationRepo) ExistsByProject(ctx context.Context, projectID string) (bool, error) {
	list, _ := m.ListByProject(ctx, projectID)
	return len(list) > 0, nil
}

func (m *mockEvaluationRepo) ListByProject(_ context.Context, projectID string) ([]model.Evaluation, error) {
	var result []model.Evaluation
	for _, e := range m.evaluations {
		if e.ProjectID == projectID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return result, nil
}

func (m *mockEvaluationRepo) Latest(ctx context.Context, projectID string) (*model.Evaluation, error) {
	list, _ := m.ListByProject(ctx, projectID)
	if len(list) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &list[0], nil
}

func (m *mockEvaluationRepo) Average(ctx context.Context, projectID string) (*float64, error) {
	list, _ := m.ListByProject(ctx, projectID)
	if len(list) == 0 {
		return nil, nil
	}
	var sum float64
	for _, e := range list {
		sum += float64(e.FinalScore)
	}
	avg := sum / float64(len(list))
	return &avg, nil
}

// ── Mock FeedbackRepository ──

type mockFeedbackRepo struct {
	items []model.Feedback
	seq   int
}

func newMockFeedbackRepo() *mockFeedbackRepo { return &mockFeedbackRepo{} }

func (m *mockFeedbackRepo) Create(_ context.Context, feedback *model.Feedback) error {
	m.seq++
	feedback.FeedbackID = fmt.Sprintf("feedback-%d", m.seq)
	m.items = append(m.items, *feedback)
	return nil
}

func (m *mockFeedbackRepo) GetByID(_ context.Context, id string) (*model.Feedback, error) {
	for _, f := range m.items {
		if f.FeedbackID == id {
			cp := f
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockFeedbackRepo) Update(_ context.Context, feedback *model.Feedback) error {
	for i := range m.items {
		if m.items[i].FeedbackID == feedback.FeedbackID {
			m.items[i].Comment = feedback.Comment
			m.items[i].Rating = feedback.Rating
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockFeedbackRepo) Delete(_ context.Context, id string) error {
	for i := range m.items {
		if m.items[i].FeedbackID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockFeedbackRepo) ListByProject(_ context.Context, projectID string) ([]model.Feedback, error) {
	var result []model.Feedback
	for _, f := range m.items {
		if f.ProjectID == projectID {
			result = append(result, f)
		}
	}
	return result, nil
}

func (m *mockFeedbackRepo) AverageRating(ctx context.Context, projectID string) (*float64, error) {
	list, _ := m.ListByProject(ctx, projectID)
	if len(list) == 0 {
		return nil, nil
	}
	var sum float64
	for _, f := range list {
		sum += float64(f.Rating)
	}
	avg := sum / float64(len(list))
	return &avg, nil
}

// ── Mock DocumentRepository ──

type mockDocumentRepo struct {
	docs      map[string]*model.Document
	seq       int
	createErr error
}

func newMockDocumentRepo() *mockDocumentRepo {
	return &mockDocumentRepo{docs: make(map[string]*model.Document)}
}

func (m *mockDocumentRepo) Create(_ context.Context, doc *model.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	doc.DocumentID = fmt.Sprintf("doc-%d", m.seq)
	cp := *doc
	m.docs[doc.DocumentID] = &cp
	return nil
}

func (m *mockDocumentRepo) GetByID(_ context.Context, id string) (*model.Document, error) {
	if d, ok := m.docs[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDocumentRepo) ListBySupervisor(_ context.Context, supervisorID string) ([]model.Document, error) {
	var result []model.Document
	for _, d := range m.docs {
		if d.SupervisorID == supervisorID {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (m *mockDocumentRepo) ListForStudent(_ context.Context, supervisorID, studentID string) ([]model.Document, error) {
	var result []model.Document
	for _, d := range m.docs {
		if d.SupervisorID == supervisorID && d.VisibleTo(studentID) {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

// ── Mock ObjectStore ──

type mockObjectStore struct {
	objects map[string][]byte
}

func newMockObjectStore() *mockObjectStore {
	return &mockObjectStore{objects: make(map[string][]byte)}
}

func (m *mockObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *mockObjectStore) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, 0, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (m *mockObjectStore) Remove(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *mockObjectStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://objects.test/" + key, nil
}

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	revoked map[string]bool
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{revoked: make(map[string]bool)}
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	m.revoked[jti] = true
	return nil
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return m.revoked[jti], nil
}

// ── 测试夹具 ──

type testEnv struct {
	svc       *Service
	users     *mockUserRepo
	projects  *mockProjectRepo
	progress  *mockProgressRepo
	evals     *mockEvaluationRepo
	feedback  *mockFeedbackRepo
	documents *mockDocumentRepo
	store     *mockObjectStore
	events    *mq.Recorder
	metrics   *metrics.Metrics
}

func newTestEnv() *testEnv {
	users := newMockUserRepo()
	env := &testEnv{
		users:     users,
		projects:  newMockProjectRepo(users),
		progress:  newMockProgressRepo(),
		evals:     newMockEvaluationRepo(),
		feedback:  newMockFeedbackRepo(),
		documents: newMockDocumentRepo(),
		store:     newMockObjectStore(),
		events:    mq.NewRecorder(),
		metrics:   metrics.New(),
	}
	repo := &repository.Repository{
		User:           env.users,
		Project:        env.projects,
		ProgressUpdate: env.progress,
		Evaluation:     env.evals,
		Feedback:       env.feedback,
		Document:       env.documents,
	}
	env.svc = NewService(Deps{
		Repo:    repo,
		Store:   env.store,
		Events:  env.events,
		Metrics: env.metrics,
		Logger:  zap.NewNop(),
	})
	return env
}

func (e *testEnv) addUser(id string, role model.Role) *model.User {
	u := &model.User{
		UserID:    id,
		Username:  id,
		Email:     id + "@test.com",
		FirstName: "测试",
		LastName:  id,
		Role:      role,
	}
	_ = e.users.Create(context.Background(), u)
	return u
}

// assign 直接写入指导关系，绕过权限校验
func (e *testEnv) assign(studentID, supervisorID string) {
	_ = e.users.SetSupervisor(context.Background(), studentID, &supervisorID, "")
}

func (e *testEnv) addProject(studentID string, status model.ProjectStatus) *model.Project {
	p := &model.Project{
		StudentID:   studentID,
		Title:       "毕业设计",
		Description: "描述",
		Status:      status,
	}
	if u, ok := e.users.users[studentID]; ok && u.SupervisorID != nil {
		id := *u.SupervisorID
		p.SupervisorID = &id
	}
	_ = e.projects.Create(context.Background(), p)
	return p
}

func sessionOf(u *model.User) access.Session {
	return access.NewSession(u.UserID, u.Role, "jti-"+u.UserID, time.Now().Add(time.Hour))
}
