package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qirllo/school-api/internal/models"
	"github.com/qirllo/school-api/internal/repository"
	appErrors "github.com/qirllo/school-api/pkg/errors"
	"github.com/qirllo/school-api/pkg/jobs"
)

func adminCaller() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, FullName: "Admin"}
}

func teacherCaller(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher, FullName: "Teacher " + id}
}

func parentCaller(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleParent, FullName: "Parent " + id}
}

func ptr(v string) *string { return &v }

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.User, 0)
	for _, u := range f.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.FullName+" "+u.Email), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeUsers) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	users, _, err := f.List(ctx, models.UserFilter{Role: &role})
	return users, err
}

func (f *fakeUsers) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	users, err := f.ListByRole(ctx, role)
	return len(users), err
}

func (f *fakeUsers) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Update(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) UpdatePassword(ctx context.Context, id, hash string, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = hash
	u.UpdatedAt = updatedAt
	return nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.users, id)
	return nil
}

type fakeStudents struct {
	students  map[string]*models.Student
	deleteErr error
}

func newFakeStudents(students ...*models.Student) *fakeStudents {
	f := &fakeStudents{students: make(map[string]*models.Student)}
	for _, s := range students {
		f.students[s.ID] = s
	}
	return f
}

func (f *fakeStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0)
	for _, s := range f.students {
		if filter.ClassID != "" && deref(s.ClassID) != filter.ClassID {
			continue
		}
		if filter.ParentID != "" && deref(s.ParentID) != filter.ParentID {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, len(out), nil
}

func (f *fakeStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStudents) FindByAdmissionNumber(ctx context.Context, admission string) (*models.Student, error) {
	for _, s := range f.students {
		if s.AdmissionNumber == admission {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudents) ExistsByAdmissionNumber(ctx context.Context, admission, excludeID string) (bool, error) {
	for _, s := range f.students {
		if s.AdmissionNumber == admission && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudents) ChildIDs(ctx context.Context, parentID string) ([]string, error) {
	ids := make([]string, 0)
	for _, s := range f.students {
		if deref(s.ParentID) == parentID {
			ids = append(ids, s.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStudents) Create(ctx context.Context, student *models.Student) error {
	if exists, _ := f.ExistsByAdmissionNumber(ctx, student.AdmissionNumber, ""); exists {
		return repository.ErrDuplicate
	}
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	cp := *student
	f.students[student.ID] = &cp
	return nil
}

func (f *fakeStudents) Update(ctx context.Context, student *models.Student) error {
	if _, ok := f.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *student
	f.students[student.ID] = &cp
	return nil
}

func (f *fakeStudents) LinkParent(ctx context.Context, parentID string, admissions []string) (int64, error) {
	var n int64
	for _, s := range f.students {
		for _, adm := range admissions {
			if s.AdmissionNumber == adm {
				s.ParentID = ptr(parentID)
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeStudents) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.students, id)
	return nil
}

type fakeClasses struct {
	classes   map[string]*models.Class
	lists     int
	deleteErr error
}

func newFakeClasses(classes ...*models.Class) *fakeClasses {
	f := &fakeClasses{classes: make(map[string]*models.Class)}
	for _, c := range classes {
		f.classes[c.ID] = c
	}
	return f
}

func (f *fakeClasses) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error) {
	f.lists++
	out := make([]models.Class, 0)
	for _, c := range f.classes {
		if filter.Level != "" && string(c.Level) != filter.Level {
			continue
		}
		if filter.TeacherScope != "" && deref(c.TeacherID) != filter.TeacherScope {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	c, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClasses) FindByName(ctx context.Context, name string) (*models.Class, error) {
	for _, c := range f.classes {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClasses) FindByLevel(ctx context.Context, level models.ClassLevel) (*models.Class, error) {
	for _, c := range f.classes {
		if c.Level == level {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClasses) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	cp := *class
	f.classes[class.ID] = &cp
	return nil
}

func (f *fakeClasses) Update(ctx context.Context, class *models.Class) error {
	if _, ok := f.classes[class.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *class
	f.classes[class.ID] = &cp
	return nil
}

func (f *fakeClasses) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.classes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.classes, id)
	return nil
}

type fakeSubjects struct {
	subjects  map[string]*models.Subject
	deleteErr error
}

func newFakeSubjects(subjects ...*models.Subject) *fakeSubjects {
	f := &fakeSubjects{subjects: make(map[string]*models.Subject)}
	for _, s := range subjects {
		f.subjects[s.ID] = s
	}
	return f
}

func (f *fakeSubjects) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, error) {
	out := make([]models.Subject, 0)
	for _, s := range f.subjects {
		if filter.ClassID != "" && s.ClassID != filter.ClassID {
			continue
		}
		if filter.TeacherID != "" && deref(s.TeacherID) != filter.TeacherID {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	s, ok := f.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubjects) ClassIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	seen := map[string]bool{}
	ids := make([]string, 0)
	for _, s := range f.subjects {
		if deref(s.TeacherID) == teacherID && !seen[s.ClassID] {
			seen[s.ClassID] = true
			ids = append(ids, s.ClassID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeSubjects) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	cp := *subject
	f.subjects[subject.ID] = &cp
	return nil
}

func (f *fakeSubjects) Update(ctx context.Context, subject *models.Subject) error {
	if _, ok := f.subjects[subject.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *subject
	f.subjects[subject.ID] = &cp
	return nil
}

func (f *fakeSubjects) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.subjects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.subjects, id)
	return nil
}

// fakeGrades mirrors the natural-key upsert of the grades table.
type fakeGrades struct {
	grades map[string]*models.Grade
	order  []string
}

func newFakeGrades() *fakeGrades {
	return &fakeGrades{grades: make(map[string]*models.Grade)}
}

func gradeKey(g *models.Grade) string {
	return strings.Join([]string{g.StudentID, g.SubjectID, g.Term, g.AcademicYear}, "|")
}

func (f *fakeGrades) Upsert(ctx context.Context, grade *models.Grade) error {
	for _, existing := range f.grades {
		if gradeKey(existing) == gradeKey(grade) {
			grade.ID = existing.ID
			grade.CreatedAt = existing.CreatedAt
			grade.Status = models.GradeStatusDraft
			cp := *grade
			f.grades[grade.ID] = &cp
			return nil
		}
	}
	grade.ID = uuid.NewString()
	grade.Status = models.GradeStatusDraft
	grade.CreatedAt = time.Now()
	cp := *grade
	f.grades[grade.ID] = &cp
	f.order = append(f.order, grade.ID)
	return nil
}

func (f *fakeGrades) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	g, ok := f.grades[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGrades) matches(g *models.Grade, filter models.GradeFilter) bool {
	if filter.StudentIDs != nil && !containsString(filter.StudentIDs, g.StudentID) {
		return false
	}
	if filter.SubjectID != "" && g.SubjectID != filter.SubjectID {
		return false
	}
	if filter.Term != "" && g.Term != filter.Term {
		return false
	}
	if filter.AcademicYear != "" && g.AcademicYear != filter.AcademicYear {
		return false
	}
	if filter.Status != "" && g.Status != filter.Status {
		return false
	}
	return true
}

func (f *fakeGrades) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	out := make([]models.Grade, 0)
	for _, id := range f.order {
		if g := f.grades[id]; f.matches(g, filter) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeGrades) Transition(ctx context.Context, id string, from, to models.GradeStatus) (bool, error) {
	g, ok := f.grades[id]
	if !ok || g.Status != from {
		return false, nil
	}
	g.Status = to
	return true, nil
}

func (f *fakeGrades) BulkTransition(ctx context.Context, filter models.GradeFilter, from, to models.GradeStatus) (int64, error) {
	filter.Status = from
	var n int64
	for _, g := range f.grades {
		if f.matches(g, filter) {
			g.Status = to
			n++
		}
	}
	return n, nil
}

type fakeAttendance struct {
	records map[string]*models.Attendance
}

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{records: make(map[string]*models.Attendance)}
}

func (f *fakeAttendance) Upsert(ctx context.Context, record *models.Attendance) error {
	key := record.StudentID + "|" + record.Date.String()
	if existing, ok := f.records[key]; ok {
		record.ID = existing.ID
	} else {
		record.ID = uuid.NewString()
	}
	cp := *record
	f.records[key] = &cp
	return nil
}

func (f *fakeAttendance) List(ctx context.Context, filter models.AttendanceFilter) ([]models.Attendance, error) {
	out := make([]models.Attendance, 0)
	for _, r := range f.records {
		if filter.StudentIDs != nil && !containsString(filter.StudentIDs, r.StudentID) {
			continue
		}
		if filter.ClassIDs != nil && !containsString(filter.ClassIDs, deref(r.ClassID)) {
			continue
		}
		if filter.Date != nil && !r.Date.Equal(filter.Date.Time) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out, nil
}

func (f *fakeAttendance) Counts(ctx context.Context, studentID string) (models.AttendanceCounts, error) {
	var c models.AttendanceCounts
	for _, r := range f.records {
		if r.StudentID != studentID {
			continue
		}
		c.Total++
		switch r.Status {
		case models.AttendancePresent:
			c.Present++
		case models.AttendanceAbsent:
			c.Absent++
		case models.AttendanceLate:
			c.Late++
		case models.AttendanceExcused:
			c.Excused++
		}
	}
	return c, nil
}

type fakeFees struct {
	structures map[string]*models.FeeStructure
	payments   []*models.FeePayment
	cleared    time.Time
}

func newFakeFees() *fakeFees {
	return &fakeFees{structures: make(map[string]*models.FeeStructure)}
}

func (f *fakeFees) UpsertStructure(ctx context.Context, s *models.FeeStructure) error {
	key := s.ClassLevel + "|" + s.Term + "|" + s.AcademicYear
	if existing, ok := f.structures[key]; ok {
		s.ID = existing.ID
	} else {
		s.ID = uuid.NewString()
	}
	cp := *s
	f.structures[key] = &cp
	return nil
}

func (f *fakeFees) ListStructures(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, error) {
	out := make([]models.FeeStructure, 0)
	for _, s := range f.structures {
		if filter.ClassLevel != "" && s.ClassLevel != filter.ClassLevel {
			continue
		}
		if filter.Term != "" && s.Term != filter.Term {
			continue
		}
		if filter.AcademicYear != "" && s.AcademicYear != filter.AcademicYear {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeFees) FindStructure(ctx context.Context, filter models.FeeStructureFilter) (*models.FeeStructure, error) {
	list, _ := f.ListStructures(ctx, filter)
	if len(list) == 0 {
		return nil, sql.ErrNoRows
	}
	return &list[0], nil
}

func (f *fakeFees) CreatePayment(ctx context.Context, p *models.FeePayment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	f.payments = append(f.payments, &cp)
	return nil
}

func (f *fakeFees) FindPayment(ctx context.Context, id string) (*models.FeePayment, error) {
	for _, p := range f.payments {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeFees) filterPayments(filter models.PaymentFilter) []models.FeePayment {
	out := make([]models.FeePayment, 0)
	for i := len(f.payments) - 1; i >= 0; i-- {
		p := f.payments[i]
		if filter.StudentIDs != nil && !containsString(filter.StudentIDs, p.StudentID) {
			continue
		}
		if filter.Term != "" && p.Term != filter.Term {
			continue
		}
		if filter.AcademicYear != "" && p.AcademicYear != filter.AcademicYear {
			continue
		}
		out = append(out, *p)
	}
	return out
}

func (f *fakeFees) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.FeePayment, error) {
	return f.filterPayments(filter), nil
}

func (f *fakeFees) PaidByStudent(ctx context.Context, filter models.PaymentFilter) (map[string]float64, error) {
	totals := map[string]float64{}
	for _, p := range f.filterPayments(filter) {
		totals[p.StudentID] += p.Amount
	}
	return totals, nil
}

func (f *fakeFees) SetReceiptPath(ctx context.Context, id, path string) error {
	for _, p := range f.payments {
		if p.ID == id {
			p.ReceiptPath = ptr(path)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeFees) ClearReceiptPaths(ctx context.Context, before time.Time) (int64, error) {
	f.cleared = before
	var n int64
	for _, p := range f.payments {
		if p.ReceiptPath != nil && p.CreatedAt.Before(before) {
			p.ReceiptPath = nil
			n++
		}
	}
	return n, nil
}

type fakeMessages struct {
	messages map[string]*models.Message
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{messages: make(map[string]*models.Message)}
}

func (f *fakeMessages) Create(ctx context.Context, m *models.Message) error {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now()
	cp := *m
	f.messages[m.ID] = &cp
	return nil
}

func (f *fakeMessages) FindByID(ctx context.Context, id string) (*models.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessages) ListFolder(ctx context.Context, userID, folder string) ([]models.Message, error) {
	out := make([]models.Message, 0)
	for _, m := range f.messages {
		owner := m.RecipientID
		if folder == models.FolderSent {
			owner = m.SenderID
		}
		if owner == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	m, ok := f.messages[id]
	if !ok || m.RecipientID != recipientID || m.IsRead {
		return false, nil
	}
	m.IsRead = true
	m.ReadAt = &at
	return true, nil
}

func (f *fakeMessages) CountUnread(ctx context.Context, userID string) (int, error) {
	n := 0
	for _, m := range f.messages {
		if m.RecipientID == userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

type fakeAnnouncements struct {
	items []models.Announcement
	lists int
}

func (f *fakeAnnouncements) List(ctx context.Context, audiences []string, limit int) ([]models.Announcement, error) {
	f.lists++
	out := make([]models.Announcement, 0)
	for i := len(f.items) - 1; i >= 0; i-- {
		if containsString(audiences, f.items[i].TargetAudience) {
			out = append(out, f.items[i])
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAnnouncements) Count(ctx context.Context, audiences []string) (int, error) {
	items, _ := f.List(ctx, audiences, 1<<30)
	return len(items), nil
}

func (f *fakeAnnouncements) Create(ctx context.Context, a *models.Announcement) error {
	a.ID = uuid.NewString()
	f.items = append(f.items, *a)
	return nil
}

func (f *fakeAnnouncements) Delete(ctx context.Context, id string) error {
	for i, a := range f.items {
		if a.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeAudit struct {
	logs []*models.AuditLog
}

func (f *fakeAudit) Create(ctx context.Context, log *models.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

type fakeQueue struct {
	jobs []jobs.Job
	err  error
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// fakeCache keeps values in memory and copies them out through JSON like
// the Redis repository does.
type fakeCache struct {
	values  map[string]interface{}
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]interface{})}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	value, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeCache) DeleteByPattern(ctx context.Context, pattern string) error {
	f.deleted = append(f.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			delete(f.values, key)
		}
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func mustDate(raw string) models.Date {
	d, err := models.ParseDate(raw)
	if err != nil {
		panic(fmt.Sprintf("bad test date %q", raw))
	}
	return d
}
