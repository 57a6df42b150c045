package school

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core/user"
)

// fakeRepo is an in-memory Repository for service tests. Atomic simply runs
// fn against the same repo; the dummy and sqlx repos carry the real
// transaction semantics.
type fakeRepo struct {
	seq          int
	classrooms   map[string]Classroom
	teachers     map[string]Teacher
	students     map[string]Student
	meetingDates map[string]MeetingDate
	usernames    map[string]string // username -> teacher ID
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		classrooms:   make(map[string]Classroom),
		teachers:     make(map[string]Teacher),
		students:     make(map[string]Student),
		meetingDates: make(map[string]MeetingDate),
		usernames:    make(map[string]string),
	}
}

func (repo *fakeRepo) nextID() string {
	repo.seq++
	return strconv.Itoa(repo.seq)
}

func (repo *fakeRepo) Atomic(ctx context.Context, fn func(repo Repository) error) error {
	return fn(repo)
}

func (repo *fakeRepo) CreateClassroom(ctx context.Context, c Classroom) (Classroom, error) {
	c.ID = repo.nextID()
	repo.classrooms[c.ID] = c
	return c, nil
}

func (repo *fakeRepo) GetClassroomByID(ctx context.Context, id string) (Classroom, error) {
	c, ok := repo.classrooms[id]
	if !ok {
		return Classroom{}, ErrClassroomNotFound
	}
	return c, nil
}

func (repo *fakeRepo) QueryAllClassrooms(ctx context.Context) ([]Classroom, error) {
	all := make([]Classroom, 0, len(repo.classrooms))
	for _, c := range repo.classrooms {
		all = append(all, c)
	}
	return all, nil
}

func (repo *fakeRepo) ClassroomNameExists(ctx context.Context, name string) (bool, error) {
	for _, c := range repo.classrooms {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (repo *fakeRepo) UpdateClassroom(ctx context.Context, c Classroom) (Classroom, error) {
	if _, ok := repo.classrooms[c.ID]; !ok {
		return Classroom{}, ErrClassroomNotFound
	}
	repo.classrooms[c.ID] = c
	return c, nil
}

func (repo *fakeRepo) DeleteClassroom(ctx context.Context, id string) error {
	delete(repo.classrooms, id)
	return nil
}

func (repo *fakeRepo) GetTeacherByID(ctx context.Context, id string) (Teacher, error) {
	t, ok := repo.teachers[id]
	if !ok {
		return Teacher{}, ErrTeacherNotFound
	}
	return t, nil
}

func (repo *fakeRepo) GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error) {
	for _, t := range repo.teachers {
		if t.UserID == userID {
			return t, nil
		}
	}
	return Teacher{}, ErrTeacherNotFound
}

func (repo *fakeRepo) GetTeacherByUsername(ctx context.Context, username string) (Teacher, error) {
	if id, ok := repo.usernames[username]; ok {
		return repo.GetTeacherByID(ctx, id)
	}
	return Teacher{}, ErrTeacherNotFound
}

func (repo *fakeRepo) QueryClassroomTeachers(ctx context.Context, classroomID string) ([]Teacher, error) {
	teachers := make([]Teacher, 0)
	for _, t := range repo.teachers {
		if t.HasClassroom(classroomID) {
			teachers = append(teachers, t)
		}
	}
	return teachers, nil
}

func (repo *fakeRepo) UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	if _, ok := repo.teachers[t.ID]; !ok {
		return Teacher{}, ErrTeacherNotFound
	}
	repo.teachers[t.ID] = t
	return t, nil
}

func (repo *fakeRepo) GetStudentByID(ctx context.Context, id string) (Student, error) {
	s, ok := repo.students[id]
	if !ok {
		return Student{}, ErrStudentNotFound
	}
	return s, nil
}

func (repo *fakeRepo) GetStudentByUserID(ctx context.Context, userID string) (Student, error) {
	for _, s := range repo.students {
		if s.UserID == userID {
			return s, nil
		}
	}
	return Student{}, ErrStudentNotFound
}

func (repo *fakeRepo) QueryClassroomStudents(ctx context.Context, classroomID string) ([]Student, error) {
	students := make([]Student, 0)
	for _, s := range repo.students {
		if s.ClassroomID == classroomID {
			students = append(students, s)
		}
	}
	return students, nil
}

func (repo *fakeRepo) UpdateStudent(ctx context.Context, s Student) (Student, error) {
	if _, ok := repo.students[s.ID]; !ok {
		return Student{}, ErrStudentNotFound
	}
	repo.students[s.ID] = s
	return s, nil
}

func (repo *fakeRepo) CreateMeetingDate(ctx context.Context, m MeetingDate) (MeetingDate, error) {
	m.ID = repo.nextID()
	repo.meetingDates[m.ID] = m
	return m, nil
}

func (repo *fakeRepo) GetMeetingDateByID(ctx context.Context, id string) (MeetingDate, error) {
	m, ok := repo.meetingDates[id]
	if !ok {
		return MeetingDate{}, ErrMeetingDateNotFound
	}
	return m, nil
}

func (repo *fakeRepo) QueryClassroomMeetingDates(ctx context.Context, classroomID string) ([]MeetingDate, error) {
	meets := make([]MeetingDate, 0)
	for _, m := range repo.meetingDates {
		if m.ClassroomID == classroomID {
			meets = append(meets, m)
		}
	}
	return meets, nil
}

func (repo *fakeRepo) UpdateMeetingDate(ctx context.Context, m MeetingDate) (MeetingDate, error) {
	if _, ok := repo.meetingDates[m.ID]; !ok {
		return MeetingDate{}, ErrMeetingDateNotFound
	}
	repo.meetingDates[m.ID] = m
	return m, nil
}

func (repo *fakeRepo) DeleteMeetingDate(ctx context.Context, id string) error {
	delete(repo.meetingDates, id)
	return nil
}

// fixtures

func (repo *fakeRepo) addTeacher(uname string) (Teacher, user.User) {
	usr := user.User{
		ID:       repo.nextID(),
		Name:     uname,
		Username: uname,
		IsActive: true,
		Status:   user.StatusApproved,
		Roles:    user.TeacherRoles,
	}
	t := Teacher{ID: repo.nextID(), UserID: usr.ID}
	repo.teachers[t.ID] = t
	repo.usernames[uname] = t.ID
	return t, usr
}

func (repo *fakeRepo) addStudent(uname string) (Student, user.User) {
	usr := user.User{
		ID:       repo.nextID(),
		Name:     uname,
		Username: uname,
		IsActive: true,
		Status:   user.StatusApproved,
		Roles:    user.StudentRoles,
	}
	s := Student{ID: repo.nextID(), UserID: usr.ID}
	repo.students[s.ID] = s
	return s, usr
}

func admin() user.User {
	return user.User{ID: "admin", Name: "Admin", Username: "admin", IsActive: true, Status: user.StatusApproved, Roles: user.AdminRoles}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	tch, actor := repo.addTeacher("teach1")
	_, studentActor := repo.addStudent("stud1")

	t.Run("student cannot create", func(t *testing.T) {
		_, err := svc.Create(ctx, NewClassroom{Name: "Biology"}, studentActor)
		assert.Equal(t, ErrTeacherRequired, err)
	})

	t.Run("admin without teacher record cannot create", func(t *testing.T) {
		_, err := svc.Create(ctx, NewClassroom{Name: "Biology"}, admin())
		assert.Equal(t, ErrTeacherRequired, err)
	})

	t.Run("creator becomes member", func(t *testing.T) {
		c, err := svc.Create(ctx, NewClassroom{Name: "Biology", Description: "Cells"}, actor)
		assert.NoError(t, err)
		assert.Equal(t, tch.ID, c.CreatorID)
		assert.True(t, c.HasTeacher(tch.ID))
		assert.True(t, c.IsActive)

		saved, err := repo.GetTeacherByID(ctx, tch.ID)
		assert.NoError(t, err)
		assert.True(t, saved.HasClassroom(c.ID))
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, NewClassroom{Name: "Biology"}, actor)
		assert.Error(t, err)
	})
}

func TestServiceUpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	_, creator := repo.addTeacher("creator")
	_, coTeacher := repo.addTeacher("coteach")
	c, err := svc.Create(ctx, NewClassroom{Name: "Maths"}, creator)
	assert.NoError(t, err)
	_, err = svc.AddTeacher(ctx, c.ID, "coteach", creator)
	assert.NoError(t, err)

	t.Run("co-teacher cannot update", func(t *testing.T) {
		_, err := svc.Update(ctx, c.ID, UpdateClassroom{Description: "Algebra"}, coTeacher)
		assert.Equal(t, ErrPermissionDenied, err)
	})

	t.Run("creator updates", func(t *testing.T) {
		updated, err := svc.Update(ctx, c.ID, UpdateClassroom{Description: "Algebra"}, creator)
		assert.NoError(t, err)
		assert.Equal(t, "Maths", updated.Name) // empty field keeps current value
		assert.Equal(t, "Algebra", updated.Description)
	})

	t.Run("admin updates", func(t *testing.T) {
		updated, err := svc.Update(ctx, c.ID, UpdateClassroom{Name: "Mathematics"}, admin())
		assert.NoError(t, err)
		assert.Equal(t, "Mathematics", updated.Name)
	})

	t.Run("co-teacher cannot delete", func(t *testing.T) {
		err := svc.Delete(ctx, c.ID, coTeacher)
		assert.Equal(t, ErrPermissionDenied, err)
	})

	t.Run("delete cascades", func(t *testing.T) {
		s, _ := repo.addStudent("stud")
		_, err := svc.EnrollStudent(ctx, c.ID, s.ID, creator)
		assert.NoError(t, err)
		m, err := svc.CreateMeetingDate(ctx, c.ID, NewMeetingDate{StartDate: time.Now(), StartTime: "09:00"}, creator)
		assert.NoError(t, err)

		assert.NoError(t, svc.Delete(ctx, c.ID, creator))

		_, err = repo.GetClassroomByID(ctx, c.ID)
		assert.Equal(t, ErrClassroomNotFound, err)
		_, err = repo.GetMeetingDateByID(ctx, m.ID)
		assert.Equal(t, ErrMeetingDateNotFound, err)

		// no back-references survive
		savedS, _ := repo.GetStudentByID(ctx, s.ID)
		assert.False(t, savedS.IsEnrolled())
		savedCreator, _ := repo.GetTeacherByUsername(ctx, "creator")
		assert.False(t, savedCreator.HasClassroom(c.ID))
		savedCo, _ := repo.GetTeacherByUsername(ctx, "coteach")
		assert.False(t, savedCo.HasClassroom(c.ID))
	})
}

func TestServiceAddTeacher(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	_, creator := repo.addTeacher("creator")
	co, coActor := repo.addTeacher("coteach")
	c, err := svc.Create(ctx, NewClassroom{Name: "History"}, creator)
	assert.NoError(t, err)

	t.Run("non-creator cannot add", func(t *testing.T) {
		_, err := svc.AddTeacher(ctx, c.ID, "creator", coActor)
		assert.Equal(t, ErrPermissionDenied, err)
	})

	t.Run("unknown teacher", func(t *testing.T) {
		_, err := svc.AddTeacher(ctx, c.ID, "nobody", creator)
		assert.Equal(t, ErrTeacherNotFound, err)
	})

	t.Run("creator adds co-teacher", func(t *testing.T) {
		updated, err := svc.AddTeacher(ctx, c.ID, "coteach", creator)
		assert.NoError(t, err)
		assert.True(t, updated.HasTeacher(co.ID))
		saved, _ := repo.GetTeacherByID(ctx, co.ID)
		assert.True(t, saved.HasClassroom(c.ID))
	})

	t.Run("re-adding is a no-op", func(t *testing.T) {
		updated, err := svc.AddTeacher(ctx, c.ID, "coteach", creator)
		assert.NoError(t, err)
		assert.Len(t, updated.TeacherIDs, 2)
	})
}

func TestServiceEnrollment(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	_, creator1 := repo.addTeacher("creator1")
	_, creator2 := repo.addTeacher("creator2")
	s, studentActor := repo.addStudent("stud")

	c1, err := svc.Create(ctx, NewClassroom{Name: "Physics"}, creator1)
	assert.NoError(t, err)
	c2, err := svc.Create(ctx, NewClassroom{Name: "Chemistry"}, creator2)
	assert.NoError(t, err)

	t.Run("student cannot enroll themselves", func(t *testing.T) {
		_, err := svc.EnrollStudent(ctx, c1.ID, s.ID, studentActor)
		assert.Equal(t, ErrTeacherRequired, err)
	})

	t.Run("creator enrolls", func(t *testing.T) {
		updated, err := svc.EnrollStudent(ctx, c1.ID, s.ID, creator1)
		assert.NoError(t, err)
		assert.True(t, updated.HasStudent(s.ID))
		saved, _ := repo.GetStudentByID(ctx, s.ID)
		assert.Equal(t, c1.ID, saved.ClassroomID)
	})

	t.Run("enrolling elsewhere moves the student", func(t *testing.T) {
		updated, err := svc.EnrollStudent(ctx, c2.ID, s.ID, creator2)
		assert.NoError(t, err)
		assert.True(t, updated.HasStudent(s.ID))

		prev, _ := repo.GetClassroomByID(ctx, c1.ID)
		assert.False(t, prev.HasStudent(s.ID))
		saved, _ := repo.GetStudentByID(ctx, s.ID)
		assert.Equal(t, c2.ID, saved.ClassroomID)
	})

	t.Run("unenroll from a classroom the student is not in is a no-op", func(t *testing.T) {
		_, err := svc.UnenrollStudent(ctx, c1.ID, s.ID, creator1)
		assert.NoError(t, err)
		saved, _ := repo.GetStudentByID(ctx, s.ID)
		assert.Equal(t, c2.ID, saved.ClassroomID)
	})

	t.Run("unenroll", func(t *testing.T) {
		updated, err := svc.UnenrollStudent(ctx, c2.ID, s.ID, creator2)
		assert.NoError(t, err)
		assert.False(t, updated.HasStudent(s.ID))
		saved, _ := repo.GetStudentByID(ctx, s.ID)
		assert.False(t, saved.IsEnrolled())
	})
}

func TestServiceRead(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	_, creator := repo.addTeacher("creator")
	_, outsiderTeacher := repo.addTeacher("outsider")
	s, studentActor := repo.addStudent("stud")
	_, otherStudent := repo.addStudent("other")

	c, err := svc.Create(ctx, NewClassroom{Name: "Geography"}, creator)
	assert.NoError(t, err)
	_, err = svc.EnrollStudent(ctx, c.ID, s.ID, creator)
	assert.NoError(t, err)

	tests := []struct {
		name    string
		actor   user.User
		wantErr error
	}{
		{name: "admin", actor: admin()},
		{name: "member teacher", actor: creator},
		{name: "enrolled student", actor: studentActor},
		{name: "outsider teacher", actor: outsiderTeacher, wantErr: ErrPermissionDenied},
		{name: "other student", actor: otherStudent, wantErr: ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Get(ctx, c.ID, tt.actor)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	t.Run("teacher classrooms", func(t *testing.T) {
		classrooms, err := svc.TeacherClassrooms(ctx, creator)
		assert.NoError(t, err)
		assert.Len(t, classrooms, 1)
	})

	t.Run("student classroom", func(t *testing.T) {
		got, err := svc.StudentClassroom(ctx, studentActor)
		assert.NoError(t, err)
		assert.Equal(t, c.ID, got.ID)

		_, err = svc.StudentClassroom(ctx, otherStudent)
		assert.Equal(t, ErrClassroomNotFound, err)
	})
}

func TestServiceMeetingDates(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo)

	_, creator1 := repo.addTeacher("creator1")
	_, creator2 := repo.addTeacher("creator2")

	c1, err := svc.Create(ctx, NewClassroom{Name: "Art"}, creator1)
	assert.NoError(t, err)
	c2, err := svc.Create(ctx, NewClassroom{Name: "Music"}, creator2)
	assert.NoError(t, err)

	start := time.Date(2021, time.September, 1, 0, 0, 0, 0, time.UTC)

	t.Run("non-creator cannot schedule", func(t *testing.T) {
		_, err := svc.CreateMeetingDate(ctx, c1.ID, NewMeetingDate{StartDate: start, StartTime: "09:00"}, creator2)
		assert.Equal(t, ErrPermissionDenied, err)
	})

	t.Run("invalid time format", func(t *testing.T) {
		_, err := svc.CreateMeetingDate(ctx, c1.ID, NewMeetingDate{StartDate: start, StartTime: "9am"}, creator1)
		assert.Error(t, err)
	})

	m, err := svc.CreateMeetingDate(ctx, c1.ID, NewMeetingDate{StartDate: start, StartTime: "09:00", EndTime: "10:30"}, creator1)
	assert.NoError(t, err)
	assert.Equal(t, c1.ID, m.ClassroomID)

	t.Run("classroom links back", func(t *testing.T) {
		saved, _ := repo.GetClassroomByID(ctx, c1.ID)
		assert.True(t, saved.HasMeetingDate(m.ID))
	})

	t.Run("cross classroom update is not found", func(t *testing.T) {
		_, err := svc.UpdateMeetingDate(ctx, c2.ID, m.ID, UpdateMeetingDate{StartTime: "11:00"}, creator2)
		assert.Equal(t, ErrMeetingDateNotFound, err)
	})

	t.Run("creator updates", func(t *testing.T) {
		updated, err := svc.UpdateMeetingDate(ctx, c1.ID, m.ID, UpdateMeetingDate{StartTime: "11:00"}, creator1)
		assert.NoError(t, err)
		assert.Equal(t, "11:00", updated.StartTime)
		assert.Equal(t, "10:30", updated.EndTime) // untouched
	})

	t.Run("listing gated by read access", func(t *testing.T) {
		_, err := svc.ClassroomMeetingDates(ctx, c1.ID, creator2)
		assert.Equal(t, ErrPermissionDenied, err)

		meets, err := svc.ClassroomMeetingDates(ctx, c1.ID, creator1)
		assert.NoError(t, err)
		assert.Len(t, meets, 1)
	})

	t.Run("delete detaches", func(t *testing.T) {
		assert.Equal(t, ErrPermissionDenied, svc.DeleteMeetingDate(ctx, m.ID, creator2))
		assert.NoError(t, svc.DeleteMeetingDate(ctx, m.ID, creator1))
		saved, _ := repo.GetClassroomByID(ctx, c1.ID)
		assert.False(t, saved.HasMeetingDate(m.ID))
	})
}
