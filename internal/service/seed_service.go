package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/qirllo/school-api/internal/models"
)

type seedUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type seedClassRepository interface {
	Create(ctx context.Context, class *models.Class) error
}

type seedSubjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
}

type seedStudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
}

type seedGradeRepository interface {
	Upsert(ctx context.Context, grade *models.Grade) error
	Transition(ctx context.Context, id string, from, to models.GradeStatus) (bool, error)
}

type seedAnnouncementRepository interface {
	Create(ctx context.Context, announcement *models.Announcement) error
}

// SeedRepositories groups the stores written by SeedService.
type SeedRepositories struct {
	Users         seedUserRepository
	Classes       seedClassRepository
	Subjects      seedSubjectRepository
	Students      seedStudentRepository
	Grades        seedGradeRepository
	Announcements seedAnnouncementRepository
}

// SeedService loads a sample school. It runs once: the presence of the seed
// admin account marks the database as seeded.
type SeedService struct {
	repos         SeedRepositories
	adminEmail    string
	adminPassword string
	academicYear  string
	cache         *CacheService
	logger        *zap.Logger
	rand          *rand.Rand
}

// NewSeedService constructs a SeedService.
func NewSeedService(repos SeedRepositories, adminEmail, adminPassword string, defaults SchoolDefaults, cache *CacheService, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adminEmail == "" {
		adminEmail = "admin@qirllo.com"
	}
	if adminPassword == "" {
		adminPassword = "admin123"
	}
	return &SeedService{
		repos:         repos,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		academicYear:  defaults.year(""),
		cache:         cache,
		logger:        logger,
		rand:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type seedPerson struct {
	name, email, phone string
}

var (
	seedAdmin    = seedPerson{"Mrs. Adebayo Folake", "", "+234 801 234 5678"}
	seedTeachers = []seedPerson{
		{"Mr. Okonkwo Chukwuemeka", "okonkwo@qirllo.com", "+234 802 345 6789"},
		{"Mrs. Adesanya Bimpe", "adesanya@qirllo.com", "+234 803 456 7890"},
		{"Mr. Ibrahim Musa", "ibrahim@qirllo.com", "+234 804 567 8901"},
	}
	seedParents = []seedPerson{
		{"Mr. Ojo Adewale", "ojo@gmail.com", "+234 805 678 9012"},
		{"Mrs. Nwosu Chidinma", "nwosu@gmail.com", "+234 806 789 0123"},
		{"Mr. Yusuf Abdullahi", "yusuf@gmail.com", "+234 807 890 1234"},
	}
	seedSubjects = []struct{ name, code string }{
		{"Mathematics", "MTH"},
		{"English Language", "ENG"},
		{"Yoruba", "YOR"},
		{"Civic Education", "CIV"},
		{"Basic Science", "BSC"},
		{"Social Studies", "SOC"},
		{"Computer Studies", "ICT"},
		{"Agricultural Science", "AGR"},
	}
	seedStudents = []string{
		"Adebayo Oluwaseun", "Okonkwo Chisom", "Ibrahim Fatima", "Nwosu Chinedu",
		"Yusuf Aisha", "Adekunle Temitope", "Obi Nneka", "Bello Aminu",
		"Okoro Ifeanyi", "Adeleke Titilayo", "Mohammed Halima", "Eze Obiora",
	}
)

// Seed writes the sample data unless it is already present.
func (s *SeedService) Seed(ctx context.Context) (*models.SeedResult, error) {
	if _, err := s.repos.Users.FindByEmail(ctx, s.adminEmail); err == nil {
		return &models.SeedResult{Message: "Database already seeded"}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check seed state")
	}

	if err := s.seed(ctx); err != nil {
		return nil, internalError(err, "failed to seed database")
	}
	_ = s.cache.Invalidate(ctx, "*")
	s.logger.Info("database seeded", zap.String("admin_email", s.adminEmail))
	return &models.SeedResult{
		Message:       "Database seeded successfully",
		AdminEmail:    s.adminEmail,
		AdminPassword: s.adminPassword,
	}, nil
}

func (s *SeedService) seed(ctx context.Context) error {
	admin := seedAdmin
	admin.email = s.adminEmail
	adminUser, err := s.createUser(ctx, admin, s.adminPassword, models.RoleAdmin)
	if err != nil {
		return err
	}

	teachers := make([]*models.User, 0, len(seedTeachers))
	for _, p := range seedTeachers {
		u, err := s.createUser(ctx, p, "teacher123", models.RoleTeacher)
		if err != nil {
			return err
		}
		teachers = append(teachers, u)
	}
	parents := make([]*models.User, 0, len(seedParents))
	for _, p := range seedParents {
		u, err := s.createUser(ctx, p, "parent123", models.RoleParent)
		if err != nil {
			return err
		}
		parents = append(parents, u)
	}

	classes := make([]*models.Class, 0, len(models.ClassLevels))
	for i, level := range models.ClassLevels {
		teacher := teachers[i%len(teachers)]
		class := &models.Class{
			Name:         string(level) + " A",
			Level:        level,
			Section:      "A",
			TeacherID:    &teacher.ID,
			TeacherName:  &teacher.FullName,
			AcademicYear: s.academicYear,
		}
		if err := s.repos.Classes.Create(ctx, class); err != nil {
			return fmt.Errorf("create class %s: %w", class.Name, err)
		}
		classes = append(classes, class)
	}

	juniors := classes[:3]
	subjectsByClass := make(map[string][]*models.Subject, len(juniors))
	for _, class := range juniors {
		for j, def := range seedSubjects {
			teacher := teachers[j%len(teachers)]
			subject := &models.Subject{
				Name:        def.name,
				Code:        def.code,
				ClassID:     class.ID,
				ClassName:   &class.Name,
				TeacherID:   &teacher.ID,
				TeacherName: &teacher.FullName,
			}
			if err := s.repos.Subjects.Create(ctx, subject); err != nil {
				return fmt.Errorf("create subject %s: %w", def.code, err)
			}
			subjectsByClass[class.ID] = append(subjectsByClass[class.ID], subject)
		}
	}

	students := make([]*models.Student, 0, len(seedStudents))
	for i, name := range seedStudents {
		class := juniors[i%len(juniors)]
		gender := models.GenderMale
		if i%2 == 1 {
			gender = models.GenderFemale
		}
		student := &models.Student{
			FullName:        name,
			AdmissionNumber: fmt.Sprintf("QRL/2025/%04d", i+1),
			ClassID:         &class.ID,
			ClassName:       &class.Name,
			Gender:          gender,
			ParentID:        &parents[i%len(parents)].ID,
		}
		if err := s.repos.Students.Create(ctx, student); err != nil {
			return fmt.Errorf("create student %s: %w", student.AdmissionNumber, err)
		}
		students = append(students, student)
	}

	for _, student := range students[:6] {
		subjects := subjectsByClass[*student.ClassID]
		for _, subject := range subjects[:4] {
			ca := float64(20 + s.rand.Intn(21))
			exam := float64(30 + s.rand.Intn(31))
			grade := buildGrade(student, subject, models.TermFirst, s.academicYear, ca, exam, nil, teachers[0].ID)
			if err := s.repos.Grades.Upsert(ctx, grade); err != nil {
				return fmt.Errorf("create grade: %w", err)
			}
			if _, err := s.repos.Grades.Transition(ctx, grade.ID, models.GradeStatusDraft, models.GradeStatusApproved); err != nil {
				return fmt.Errorf("approve grade: %w", err)
			}
		}
	}

	announcements := []models.Announcement{
		{
			Title:          "Welcome to " + s.academicYear + " Academic Session",
			Content:        "We welcome all students, parents, and staff to the new academic year. Let's make it a successful one!",
			TargetAudience: models.AudienceAll,
			Priority:       "high",
		},
		{
			Title:          "First Term Examination Schedule",
			Content:        "First term examinations will begin on December 10th, 2025. All students are advised to prepare adequately.",
			TargetAudience: models.AudienceAll,
			Priority:       "normal",
		},
	}
	for i := range announcements {
		a := &announcements[i]
		a.AuthorID = &adminUser.ID
		a.AuthorName = &adminUser.FullName
		if err := s.repos.Announcements.Create(ctx, a); err != nil {
			return fmt.Errorf("create announcement: %w", err)
		}
	}
	return nil
}

func (s *SeedService) createUser(ctx context.Context, p seedPerson, password string, role models.UserRole) (*models.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        p.email,
		PasswordHash: hash,
		FullName:     p.name,
		Role:         role,
		Phone:        strPtr(p.phone),
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user %s: %w", p.email, err)
	}
	return user, nil
}
