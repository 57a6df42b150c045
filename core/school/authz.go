package school

import (
	"context"
	"errors"

	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrClassroomNotFound   = errors.New("classroom not found")
	ErrTeacherNotFound     = errors.New("teacher not found")
	ErrStudentNotFound     = errors.New("student not found")
	ErrMeetingDateNotFound = errors.New("meeting date not found")
	ErrNameExists          = errors.New("a classroom with this name already exists")

	ErrPermissionDenied = errors.New("permission denied")
	ErrTeacherRequired  = errors.New("a teacher account is required")
)

// Authorization rules. The creator role exists so that co-teachers can view
// and collaborate while only the originating teacher may restructure or
// destroy the classroom. Admins are always allowed.

// resolveTeacher maps an acting user to its Teacher record.
func (svc *service) resolveTeacher(ctx context.Context, actor user.User) (Teacher, error) {
	if !actor.IsTeacher() {
		return Teacher{}, ErrTeacherRequired
	}
	t, err := svc.repo.GetTeacherByUserID(ctx, actor.ID)
	if err != nil {
		if err == ErrTeacherNotFound {
			return Teacher{}, ErrTeacherRequired
		}
		return Teacher{}, err
	}
	return t, nil
}

// authorizeManage gates the creator-only mutations: update, delete,
// addTeacher and every MeetingDate mutation.
func (svc *service) authorizeManage(ctx context.Context, c Classroom, actor user.User) error {
	if actor.IsAdmin() {
		return nil
	}
	t, err := svc.resolveTeacher(ctx, actor)
	if err != nil {
		return err
	}
	if !c.IsCreator(t) {
		return ErrPermissionDenied
	}
	return nil
}

// authorizeEnroll gates enroll/unenroll: admins and the creator teacher.
func (svc *service) authorizeEnroll(ctx context.Context, c Classroom, actor user.User) error {
	return svc.authorizeManage(ctx, c, actor)
}

// authorizeRead gates read access: admins, member teachers and enrolled
// students.
func (svc *service) authorizeRead(ctx context.Context, c Classroom, actor user.User) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsTeacher() {
		t, err := svc.resolveTeacher(ctx, actor)
		if err != nil {
			return err
		}
		if c.HasTeacher(t.ID) {
			return nil
		}
	}
	if actor.IsStudent() {
		s, err := svc.repo.GetStudentByUserID(ctx, actor.ID)
		if err != nil && err != ErrStudentNotFound {
			return err
		}
		if err == nil && c.HasStudent(s.ID) {
			return nil
		}
	}
	return ErrPermissionDenied
}
