package testutil

import (
	"context"
	"testing"

	"url2/internal/models"
)

// Fixture is a memory store seeded with one course and a user per role.
type Fixture struct {
	Store    *MemoryStore
	Course   *models.Course
	Admin    *models.User
	Teacher  *models.User // editingteacher
	Student  *models.User
	Outsider *models.User // not enrolled
}

// NewFixture seeds a fresh memory store.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()

	course := &models.Course{
		FullName:  "Networking Basics",
		ShortName: "NET101",
		IDNumber:  "NET-2026",
		Summary:   "Intro to networks",
	}
	if err := store.CreateCourse(ctx, course); err != nil {
		t.Fatalf("failed to create fixture course: %v", err)
	}

	user := func(sub, first, role string) *models.User {
		u := &models.User{
			Sub:       sub,
			Username:  sub,
			FirstName: first,
			LastName:  "Tester",
			Email:     sub + "@example.org",
			Role:      role,
		}
		if err := store.UpsertUser(ctx, u); err != nil {
			t.Fatalf("failed to create fixture user: %v", err)
		}
		return u
	}

	f := &Fixture{
		Store:    store,
		Course:   course,
		Admin:    user("admin", "Ada", models.RoleAdmin),
		Teacher:  user("teacher", "Tom", models.RoleUser),
		Student:  user("student", "Sam", models.RoleUser),
		Outsider: user("outsider", "Olga", models.RoleUser),
	}

	f.Enrol(t, f.Teacher, models.CourseRoleEditingTeacher)
	f.Enrol(t, f.Student, models.CourseRoleStudent)
	return f
}

// Enrol gives user a role in the fixture course.
func (f *Fixture) Enrol(t *testing.T, user *models.User, role string) {
	t.Helper()
	e := &models.Enrolment{UserID: user.ID, CourseID: f.Course.ID, Role: role}
	if err := f.Store.EnrolUser(context.Background(), e); err != nil {
		t.Fatalf("failed to enrol fixture user: %v", err)
	}
}

// AddURL2 stores a resource in the fixture course.
func (f *Fixture) AddURL2(t *testing.T, u *models.URL2, cm *models.CourseModule) (*models.URL2, *models.CourseModule) {
	t.Helper()
	u.CourseID = f.Course.ID
	if cm == nil {
		cm = &models.CourseModule{Visible: true}
	}
	if err := f.Store.CreateURL2(context.Background(), u, cm); err != nil {
		t.Fatalf("failed to create fixture url2: %v", err)
	}
	return u, cm
}
