package school

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
)

// Teacher is the role record backing a User with a `teacher:` role.
// It is created together with its User at registration and never orphaned.
// ClassroomIDs mirrors Classroom.TeacherIDs; both sides are only ever mutated
// through the graph helpers.
type Teacher struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ClassroomIDs []string  `json:"classroom_ids"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (t *Teacher) HasClassroom(classroomID string) bool {
	return containsID(t.ClassroomIDs, classroomID)
}

// Student is the role record backing a User with a `student:` role.
// A student belongs to at most one classroom at a time; an empty ClassroomID
// means unenrolled.
type Student struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ClassroomID string    `json:"classroom_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (s *Student) IsEnrolled() bool { return s.ClassroomID != "" }

// Classroom is created by a Teacher (its immutable creator). The creator is
// always a member of TeacherIDs. StudentIDs and MeetingDateIDs mirror
// Student.ClassroomID and MeetingDate.ClassroomID respectively.
type Classroom struct {
	ID             string    `json:"id"`
	CreatorID      string    `json:"creator_id"` // Teacher ID; immutable
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	URL            string    `json:"url"`
	IsActive       bool      `json:"is_active"`
	TeacherIDs     []string  `json:"teacher_ids"`
	StudentIDs     []string  `json:"student_ids"`
	MeetingDateIDs []string  `json:"meeting_date_ids"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (c *Classroom) IsCreator(t Teacher) bool { return c.CreatorID == t.ID }

func (c *Classroom) HasTeacher(teacherID string) bool {
	return containsID(c.TeacherIDs, teacherID)
}

func (c *Classroom) HasStudent(studentID string) bool {
	return containsID(c.StudentIDs, studentID)
}

func (c *Classroom) HasMeetingDate(meetingDateID string) bool {
	return containsID(c.MeetingDateIDs, meetingDateID)
}

// MeetingDate belongs to exactly one Classroom and has no lifecycle of its own
// outside it. Times are wall-clock "15:04" strings; end values are accepted
// without chronological validation against start.
type MeetingDate struct {
	ID          string    `json:"id"`
	ClassroomID string    `json:"classroom_id"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewClassroom contains information needed to create a new Classroom.
type NewClassroom struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	URL         string `json:"url" validate:"omitempty,url"`
}

func (nc *NewClassroom) Validate(ctx context.Context, svc Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.URL = core.CleanString(nc.URL)

	if err := core.Validate.Struct(nc); err != nil {
		return err
	}
	exists, err := svc.NameExists(ctx, nc.Name)
	if err != nil {
		return err
	}
	if exists {
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	return nil
}

// UpdateClassroom defines what information may be provided to modify an
// existing Classroom. Empty fields keep their current value.
type UpdateClassroom struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url" validate:"omitempty,url"`
	IsActive    *bool  `json:"is_active"`
}

func (uc *UpdateClassroom) Validate(origClassroom Classroom) error {
	name := core.CleanString(uc.Name)
	if name != "" {
		uc.Name = name
	} else {
		uc.Name = origClassroom.Name
	}
	uc.Description = core.CleanString(uc.Description)
	if uc.Description == "" {
		uc.Description = origClassroom.Description
	}
	uc.URL = core.CleanString(uc.URL)
	if uc.URL == "" {
		uc.URL = origClassroom.URL
	}
	return core.Validate.Struct(uc)
}

// NewMeetingDate contains information needed to schedule a meeting on a
// Classroom.
type NewMeetingDate struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date"`
	StartTime string    `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string    `json:"end_time" validate:"omitempty,datetime=15:04"`
}

func (nm NewMeetingDate) Validate() error { return core.Validate.Struct(nm) }

// UpdateMeetingDate defines what information may be provided to modify an
// existing MeetingDate. Zero fields keep their current value.
type UpdateMeetingDate struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	StartTime string    `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string    `json:"end_time" validate:"omitempty,datetime=15:04"`
}

func (um UpdateMeetingDate) Validate() error { return core.Validate.Struct(um) }
