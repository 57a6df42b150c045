package school

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type (
	// Repository is the durability boundary for the classroom graph.
	// Atomic runs fn against a transaction-bound Repository: every paired
	// graph mutation (both sides of an association) is persisted inside one
	// such block so no reader observes a half-updated association.
	Repository interface {
		Atomic(ctx context.Context, fn func(repo Repository) error) error

		CreateClassroom(ctx context.Context, c Classroom) (Classroom, error)
		GetClassroomByID(ctx context.Context, id string) (Classroom, error)
		QueryAllClassrooms(ctx context.Context) ([]Classroom, error)
		ClassroomNameExists(ctx context.Context, name string) (bool, error)
		UpdateClassroom(ctx context.Context, c Classroom) (Classroom, error)
		DeleteClassroom(ctx context.Context, id string) error

		GetTeacherByID(ctx context.Context, id string) (Teacher, error)
		GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error)
		// GetTeacherByUsername resolves a teacher through its User's username.
		GetTeacherByUsername(ctx context.Context, username string) (Teacher, error)
		QueryClassroomTeachers(ctx context.Context, classroomID string) ([]Teacher, error)
		UpdateTeacher(ctx context.Context, t Teacher) (Teacher, error)

		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByUserID(ctx context.Context, userID string) (Student, error)
		QueryClassroomStudents(ctx context.Context, classroomID string) ([]Student, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)

		CreateMeetingDate(ctx context.Context, m MeetingDate) (MeetingDate, error)
		GetMeetingDateByID(ctx context.Context, id string) (MeetingDate, error)
		QueryClassroomMeetingDates(ctx context.Context, classroomID string) ([]MeetingDate, error)
		UpdateMeetingDate(ctx context.Context, m MeetingDate) (MeetingDate, error)
		DeleteMeetingDate(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, nc NewClassroom, actor user.User) (Classroom, error)
		Update(ctx context.Context, id string, uc UpdateClassroom, actor user.User) (Classroom, error)
		Delete(ctx context.Context, id string, actor user.User) error
		AddTeacher(ctx context.Context, classroomID, teacherUsername string, actor user.User) (Classroom, error)
		EnrollStudent(ctx context.Context, classroomID, studentID string, actor user.User) (Classroom, error)
		UnenrollStudent(ctx context.Context, classroomID, studentID string, actor user.User) (Classroom, error)
		Get(ctx context.Context, id string, actor user.User) (Classroom, error)
		QueryAll(ctx context.Context) ([]Classroom, error)
		NameExists(ctx context.Context, name string) (bool, error)
		TeacherClassrooms(ctx context.Context, actor user.User) ([]Classroom, error)
		StudentClassroom(ctx context.Context, actor user.User) (Classroom, error)

		CreateMeetingDate(ctx context.Context, classroomID string, nm NewMeetingDate, actor user.User) (MeetingDate, error)
		UpdateMeetingDate(ctx context.Context, classroomID, meetingDateID string, um UpdateMeetingDate, actor user.User) (MeetingDate, error)
		DeleteMeetingDate(ctx context.Context, meetingDateID string, actor user.User) error
		ClassroomMeetingDates(ctx context.Context, classroomID string, actor user.User) ([]MeetingDate, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Create builds a new Classroom owned by the acting teacher. The creator is
// linked as a member teacher before anything is persisted.
func (svc *service) Create(ctx context.Context, nc NewClassroom, actor user.User) (Classroom, error) {
	t, err := svc.resolveTeacher(ctx, actor)
	if err != nil {
		return Classroom{}, err
	}
	if err = nc.Validate(ctx, svc); err != nil {
		return Classroom{}, err
	}

	now := time.Now().UTC()
	c := Classroom{
		CreatorID:   t.ID,
		Name:        nc.Name,
		Description: nc.Description,
		URL:         nc.URL,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = svc.repo.Atomic(ctx, func(repo Repository) error {
		c, err = repo.CreateClassroom(ctx, c)
		if err != nil {
			return err
		}
		AddTeacher(&c, &t)
		if c, err = repo.UpdateClassroom(ctx, c); err != nil {
			return err
		}
		_, err = repo.UpdateTeacher(ctx, t)
		return err
	})
	if err != nil {
		return Classroom{}, err
	}
	return c, nil
}

// Update applies a field patch to a classroom. Creator only.
func (svc *service) Update(ctx context.Context, id string, uc UpdateClassroom, actor user.User) (Classroom, error) {
	c, err := svc.repo.GetClassroomByID(ctx, id)
	if err != nil {
		return Classroom{}, err
	}
	if err := svc.authorizeManage(ctx, c, actor); err != nil {
		return Classroom{}, err
	}
	if err := uc.Validate(c); err != nil {
		return Classroom{}, err
	}
	if uc.Name != c.Name {
		exists, err := svc.repo.ClassroomNameExists(ctx, uc.Name)
		if err != nil {
			return Classroom{}, err
		}
		if exists {
			return Classroom{}, core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
		}
	}

	c.Name = uc.Name
	c.Description = uc.Description
	c.URL = uc.URL
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClassroom(ctx, c)
}

// Delete tears a classroom down: every teacher, student and meeting date is
// detached first so no back-reference survives, then the classroom record is
// removed. The whole teardown runs in one transaction. Creator only.
func (svc *service) Delete(ctx context.Context, id string, actor user.User) error {
	c, err := svc.repo.GetClassroomByID(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.authorizeManage(ctx, c, actor); err != nil {
		return err
	}

	return svc.repo.Atomic(ctx, func(repo Repository) error {
		teachers, err := repo.QueryClassroomTeachers(ctx, c.ID)
		if err != nil {
			return err
		}
		for i := range teachers {
			RemoveTeacher(&c, &teachers[i])
			if _, err = repo.UpdateTeacher(ctx, teachers[i]); err != nil {
				return err
			}
		}

		students, err := repo.QueryClassroomStudents(ctx, c.ID)
		if err != nil {
			return err
		}
		for i := range students {
			RemoveStudent(&c, &students[i])
			if _, err = repo.UpdateStudent(ctx, students[i]); err != nil {
				return err
			}
		}

		meetings, err := repo.QueryClassroomMeetingDates(ctx, c.ID)
		if err != nil {
			return err
		}
		for i := range meetings {
			RemoveMeetingDate(&c, &meetings[i])
			if err = repo.DeleteMeetingDate(ctx, meetings[i].ID); err != nil {
				return err
			}
		}

		return repo.DeleteClassroom(ctx, c.ID)
	})
}

// AddTeacher links a co-teacher (resolved by username) to a classroom.
// Creator only; linking an already linked teacher is a no-op.
func (svc *service) AddTeacher(ctx context.Context, classroomID, teacherUsername string, actor user.User) (Classroom, error) {
	c, err := svc.repo.GetClassroomByID(ctx, classroomID)
	if err != nil {
		return Classroom{}, err
	}
	if err := svc.authorizeManage(ctx, c, actor); err != nil {
		return Classroom{}, err
	}
	t, err := svc.repo.GetTeacherByUsername(ctx, teacherUsername)
	if err != nil {
		return Classroom{}, err
	}

	err = svc.repo.Atomic(ctx, func(repo Repository) error {
		AddTeacher(&c, &t)
		if c, err = repo.UpdateClassroom(ctx, c); err != nil {
			return err
		}
		_, err = repo.UpdateTeacher(ctx, t)
		return err
	})
	if err != nil {
		return Classroom{}, err
	}
	return c, nil
}

// EnrollStudent enrolls a student into a classroom. A student already
// enrolled elsewhere is moved: the previous classroom is detached in the same
// transaction so exactly one classroom holds the student afterwards.
// Admin or creator only.
func (svc *service) EnrollStudent(ctx context.Context, classroomID, studentID string, actor user.User) (Classroom, error) {
	c, err := svc.repo.GetClassroomByID(ctx, classroomID)
	if err != nil {
		return Classroom{}, err
	}
	if err := svc.authorizeEnroll(ctx, c, actor); err != nil {
		return Classroom{}, err
	}
	s, err := svc.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		return Classroom{}, err
	}

	err = svc.repo.Atomic(ctx, func(repo Repository) error {
		if s.IsEnrolled() && s.ClassroomID != c.ID {
			prev, err := repo.GetClassroomByID(ctx, s.ClassroomID)
			if err != nil {
				return err
			}
			RemoveStudent(&prev, &s)
			if _, err = repo.UpdateClassroom(ctx, prev); err != nil {
				return err
			}
		}
		AddStudent(&c, &s)
		if c, err = repo.UpdateClassroom(ctx, c); err != nil {
			return err
		}
		s.UpdatedAt = time.Now().UTC()
		_, err = repo.UpdateStudent(ctx, s)
		return err
	})
	if err != nil {
		return Classroom{}, err
	}
	return c, nil
}

// UnenrollStudent removes a student from a classroom. Removing a student that
// is not enrolled here is a no-op. Admin or creator only.
func (svc *service) UnenrollStudent(ctx context.Context, classroomID, studentID string, actor user.User) (Classroom, error) {
	c, err := svc.repo.GetClassroomByID(ctx, classroomID)
	if err != nil {
		return Classroom{}, err
	}
	if err := svc.authorizeEnroll(ctx, c, actor); err != nil {
		return Classroom{}, err
	}
	s, err := svc.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		return Classroom{}, err
	}
	if s.ClassroomID != c.ID {
		return c, nil
	}

	err = svc.repo.Atomic(ctx, func(repo Repository) error {
		RemoveStudent(&c, &s)
		if c, err = repo.UpdateClassroom(ctx, c); err != nil {
			return err
		}
		s.UpdatedAt = time.Now().UTC()
		_, err = repo.UpdateStudent(ctx, s)
		return err
	})
	if err != nil {
		return Classroom{}, err
	}
	return c, nil
}

func (svc *service) Get(ctx context.Context, id string, actor user.User) (Classroom, error) {
	c, err := svc.repo.GetClassroomByID(ctx, id)
	if err != nil {
		return Classroom{}, err
	}
	if err := svc.authorizeRead(ctx, c, actor); err != nil {
		return Classroom{}, err
	}
	return c, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]Classroom, error) {
	return svc.repo.QueryAllClassrooms(ctx)
}

func (svc *service) NameExists(ctx context.Context, name string) (bool, error) {
	return svc.repo.ClassroomNameExists(ctx, name)
}

// TeacherClassrooms lists the classrooms the acting teacher created or was
// added to.
func (svc *service) TeacherClassrooms(ctx context.Context, actor user.User) ([]Classroom, error) {
	t, err := svc.resolveTeacher(ctx, actor)
	if err != nil {
		return nil, err
	}
	classrooms := make([]Classroom, 0, len(t.ClassroomIDs))
	for _, id := range t.ClassroomIDs {
		c, err := svc.repo.GetClassroomByID(ctx, id)
		if err != nil {
			return nil, err
		}
		classrooms = append(classrooms, c)
	}
	return classrooms, nil
}

// StudentClassroom returns the classroom the acting student is enrolled in.
func (svc *service) StudentClassroom(ctx context.Context, actor user.User) (Classroom, error) {
	s, err := svc.repo.GetStudentByUserID(ctx, actor.ID)
	if err != nil {
		return Classroom{}, err
	}
	if !s.IsEnrolled() {
		return Classroom{}, ErrClassroomNotFound
	}
	return svc.repo.GetClassroomByID(ctx, s.ClassroomID)
}

// CreateMeetingDate schedules a meeting on a classroom. Creator only.
func (svc *service) CreateMeetingDate(ctx context.Context, classroomID string, nm NewMeetingDate, actor user.User) (MeetingDate, error) {
	c, err := svc.repo.GetClassroomByID(ctx, classroomID)
	if err != nil {
		return MeetingDate{}, err
	}
	if err := svc.authorizeManage(ctx, c, actor); err != nil {
		return MeetingDate{}, err
	}
	if err := nm.Validate(); err != nil {
		return MeetingDate{}, err
	}

	now := time.Now().UTC()
	m := MeetingDate{
		ClassroomID: c.ID,
		StartDate:   nm.StartDate,
		EndDate:     nm.EndDate,
		StartTime:   nm.StartTime,
		EndTime:     nm.EndTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = svc.repo.Atomic(ctx, func(repo Repository) error {
		m, err = repo.CreateMeetingDate(ctx, m)
		if err != nil {
			return err
		}
		AddMeetingDate(&c, &m)
		_, err = repo.UpdateClassroom(ctx, c)
		return err
	})
	if err != nil {
		return MeetingDate{}, err
	}
	return m, nil
}

// UpdateMeetingDate patches a meeting date. Creator only; a meeting date from
// another classroom cannot be reached through this classroom's id.
func (svc *service) UpdateMeetingDate(ctx context.Context, classroomID, meetingDateID string, um UpdateMeetingDate, actor user.User) (MeetingDate, error) {
	c, err := svc.repo.GetClassroomByID(ctx, classroomID)
	if err != nil {
		return MeetingDate{}, err
	}
	if err := svc.authorizeManage(ctx, c, actor); err != nil {
		return MeetingDate{}, err
	}
	if err := um.Validate(); err != nil {
		return MeetingDate{}, err
	}
	m, err := svc.repo.GetMeetingDateByID(ctx, meetingDateID)
	if err != nil {
		return MeetingDate{}, err
	}
	if m.ClassroomID != c.ID {
		return MeetingDate{}, ErrMeetingDateNotFound
	}

	if !um.StartDate.IsZero() {
		m.StartDate = um.StartDate
	}
	if !um.EndDate.IsZero() {
		m.EndDate = um.EndDate
	}
	if um.StartTime != "" {
		m.StartTime = um.StartTime
	}
	if um.EndTime != "" {
		m.EndTime = um.EndTime
	}
	m.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMeetingDate(ctx, m)
}

// DeleteMeetingDate removes a meeting date from its classroom. Creator of the
// owning classroom only.
func (svc *service) DeleteMeetingDate(ctx context.Context, meetingDateID string, actor user.User) error {
	m, err := svc.repo.GetMeetingDateByID(ctx, meetingDateID)
	if err != nil {
		return err
	}
	c, err := svc.repo.GetClassroomByID(ctx, m.ClassroomID)
	if err != nil {
		return err
	}
	if err := svc.authorizeManage(ctx, c, actor); err != nil {
		return err
	}

	return svc.repo.Atomic(ctx, func(repo Repository) error {
		RemoveMeetingDate(&c, &m)
		if _, err := repo.UpdateClassroom(ctx, c); err != nil {
			return err
		}
		return repo.DeleteMeetingDate(ctx, m.ID)
	})
}

func (svc *service) ClassroomMeetingDates(ctx context.Context, classroomID string, actor user.User) ([]MeetingDate, error) {
	c, err := svc.repo.GetClassroomByID(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	if err := svc.authorizeRead(ctx, c, actor); err != nil {
		return nil, err
	}
	return svc.repo.QueryClassroomMeetingDates(ctx, c.ID)
}
