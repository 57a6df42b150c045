package dummydb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type schoolRepository struct {
	lockable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{lockable: lockable{db: db}}
}

func (repo *schoolRepository) Atomic(ctx context.Context, fn func(repo school.Repository) error) error {
	if repo.tx {
		return fn(repo)
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return fn(&schoolRepository{lockable: lockable{db: repo.db, tx: true}})
}

// classrooms

func (repo *schoolRepository) CreateClassroom(ctx context.Context, c school.Classroom) (school.Classroom, error) {
	defer repo.lock()()

	if repo.classroomNameTaken(c.Name, "") {
		return school.Classroom{}, school.ErrNameExists
	}
	c.ID = uuid.New().String()
	repo.db.classrooms[c.ID] = &c
	return c, nil
}

// classroomNameTaken mirrors the unique index on classroom.name.
func (repo *schoolRepository) classroomNameTaken(name, exclID string) bool {
	for _, existing := range repo.db.classrooms {
		if existing.ID != exclID && existing.Name == name {
			return true
		}
	}
	return false
}

func (repo *schoolRepository) GetClassroomByID(ctx context.Context, id string) (school.Classroom, error) {
	defer repo.rLock()()

	if c, ok := repo.db.classrooms[id]; ok {
		return *c, nil
	}
	return school.Classroom{}, school.ErrClassroomNotFound
}

func (repo *schoolRepository) QueryAllClassrooms(ctx context.Context) ([]school.Classroom, error) {
	defer repo.rLock()()

	classrooms := make([]school.Classroom, 0, len(repo.db.classrooms))
	for _, c := range repo.db.classrooms {
		classrooms = append(classrooms, *c)
	}
	return classrooms, nil
}

func (repo *schoolRepository) ClassroomNameExists(ctx context.Context, name string) (bool, error) {
	defer repo.rLock()()

	for _, c := range repo.db.classrooms {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (repo *schoolRepository) UpdateClassroom(ctx context.Context, c school.Classroom) (school.Classroom, error) {
	defer repo.lock()()

	if _, ok := repo.db.classrooms[c.ID]; !ok {
		return school.Classroom{}, school.ErrClassroomNotFound
	}
	if repo.classroomNameTaken(c.Name, c.ID) {
		return school.Classroom{}, school.ErrNameExists
	}
	repo.db.classrooms[c.ID] = &c
	return c, nil
}

func (repo *schoolRepository) DeleteClassroom(ctx context.Context, id string) error {
	defer repo.lock()()
	delete(repo.db.classrooms, id)
	return nil
}

// teachers

func (repo *schoolRepository) GetTeacherByID(ctx context.Context, id string) (school.Teacher, error) {
	defer repo.rLock()()

	if t, ok := repo.db.teachers[id]; ok {
		return *t, nil
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) GetTeacherByUserID(ctx context.Context, userID string) (school.Teacher, error) {
	defer repo.rLock()()

	for _, t := range repo.db.teachers {
		if t.UserID == userID {
			return *t, nil
		}
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) GetTeacherByUsername(ctx context.Context, username string) (school.Teacher, error) {
	defer repo.rLock()()

	var usr *user.User
	for _, u := range repo.db.users {
		if u.Username == username {
			usr = u
			break
		}
	}
	if usr == nil {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	for _, t := range repo.db.teachers {
		if t.UserID == usr.ID {
			return *t, nil
		}
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) QueryClassroomTeachers(ctx context.Context, classroomID string) ([]school.Teacher, error) {
	defer repo.rLock()()

	var teachers []school.Teacher
	for _, t := range repo.db.teachers {
		if t.HasClassroom(classroomID) {
			teachers = append(teachers, *t)
		}
	}
	return teachers, nil
}

func (repo *schoolRepository) UpdateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	defer repo.lock()()

	if _, ok := repo.db.teachers[t.ID]; !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	repo.db.teachers[t.ID] = &t
	return t, nil
}

// students

func (repo *schoolRepository) GetStudentByID(ctx context.Context, id string) (school.Student, error) {
	defer repo.rLock()()

	if s, ok := repo.db.students[id]; ok {
		return *s, nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) GetStudentByUserID(ctx context.Context, userID string) (school.Student, error) {
	defer repo.rLock()()

	for _, s := range repo.db.students {
		if s.UserID == userID {
			return *s, nil
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) QueryClassroomStudents(ctx context.Context, classroomID string) ([]school.Student, error) {
	defer repo.rLock()()

	var students []school.Student
	for _, s := range repo.db.students {
		if s.ClassroomID == classroomID {
			students = append(students, *s)
		}
	}
	return students, nil
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	defer repo.lock()()

	if _, ok := repo.db.students[s.ID]; !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	repo.db.students[s.ID] = &s
	return s, nil
}

// meeting dates

func (repo *schoolRepository) CreateMeetingDate(ctx context.Context, m school.MeetingDate) (school.MeetingDate, error) {
	defer repo.lock()()

	m.ID = uuid.New().String()
	repo.db.meetingDates[m.ID] = &m
	return m, nil
}

func (repo *schoolRepository) GetMeetingDateByID(ctx context.Context, id string) (school.MeetingDate, error) {
	defer repo.rLock()()

	if m, ok := repo.db.meetingDates[id]; ok {
		return *m, nil
	}
	return school.MeetingDate{}, school.ErrMeetingDateNotFound
}

func (repo *schoolRepository) QueryClassroomMeetingDates(ctx context.Context, classroomID string) ([]school.MeetingDate, error) {
	defer repo.rLock()()

	var meetings []school.MeetingDate
	for _, m := range repo.db.meetingDates {
		if m.ClassroomID == classroomID {
			meetings = append(meetings, *m)
		}
	}
	return meetings, nil
}

func (repo *schoolRepository) UpdateMeetingDate(ctx context.Context, m school.MeetingDate) (school.MeetingDate, error) {
	defer repo.lock()()

	if _, ok := repo.db.meetingDates[m.ID]; !ok {
		return school.MeetingDate{}, school.ErrMeetingDateNotFound
	}
	repo.db.meetingDates[m.ID] = &m
	return m, nil
}

func (repo *schoolRepository) DeleteMeetingDate(ctx context.Context, id string) error {
	defer repo.lock()()
	delete(repo.db.meetingDates, id)
	return nil
}
