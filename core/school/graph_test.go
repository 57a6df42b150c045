package school

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddRemoveTeacher(t *testing.T) {
	c := Classroom{ID: "c1"}
	tch := Teacher{ID: "t1"}

	AddTeacher(&c, &tch)
	assert.Equal(t, []string{"t1"}, c.TeacherIDs)
	assert.Equal(t, []string{"c1"}, tch.ClassroomIDs)

	// idempotent
	AddTeacher(&c, &tch)
	assert.Equal(t, []string{"t1"}, c.TeacherIDs)
	assert.Equal(t, []string{"c1"}, tch.ClassroomIDs)

	RemoveTeacher(&c, &tch)
	assert.Empty(t, c.TeacherIDs)
	assert.Empty(t, tch.ClassroomIDs)

	// idempotent
	RemoveTeacher(&c, &tch)
	assert.Empty(t, c.TeacherIDs)
	assert.Empty(t, tch.ClassroomIDs)
}

func TestAddRemoveStudent(t *testing.T) {
	c := Classroom{ID: "c1"}
	s := Student{ID: "s1"}

	AddStudent(&c, &s)
	assert.Equal(t, []string{"s1"}, c.StudentIDs)
	assert.Equal(t, "c1", s.ClassroomID)

	// idempotent
	AddStudent(&c, &s)
	assert.Equal(t, []string{"s1"}, c.StudentIDs)

	// removing from a classroom the student is not in leaves both sides untouched
	other := Classroom{ID: "c2"}
	RemoveStudent(&other, &s)
	assert.Equal(t, "c1", s.ClassroomID)
	assert.Empty(t, other.StudentIDs)

	RemoveStudent(&c, &s)
	assert.Empty(t, c.StudentIDs)
	assert.False(t, s.IsEnrolled())

	// idempotent
	RemoveStudent(&c, &s)
	assert.Empty(t, c.StudentIDs)
}

func TestAddRemoveMeetingDate(t *testing.T) {
	c := Classroom{ID: "c1"}
	m := MeetingDate{ID: "m1"}

	AddMeetingDate(&c, &m)
	assert.Equal(t, []string{"m1"}, c.MeetingDateIDs)
	assert.Equal(t, "c1", m.ClassroomID)

	// idempotent
	AddMeetingDate(&c, &m)
	assert.Equal(t, []string{"m1"}, c.MeetingDateIDs)

	// a meeting date owned by another classroom cannot be detached through c
	other := Classroom{ID: "c2"}
	RemoveMeetingDate(&other, &m)
	assert.Equal(t, "c1", m.ClassroomID)

	RemoveMeetingDate(&c, &m)
	assert.Empty(t, c.MeetingDateIDs)
	assert.Empty(t, m.ClassroomID)
}

func TestGraphSymmetry(t *testing.T) {
	c1 := Classroom{ID: "c1"}
	c2 := Classroom{ID: "c2"}
	tch := Teacher{ID: "t1"}

	AddTeacher(&c1, &tch)
	AddTeacher(&c2, &tch)
	assert.ElementsMatch(t, []string{"c1", "c2"}, tch.ClassroomIDs)
	assert.True(t, c1.HasTeacher(tch.ID))
	assert.True(t, c2.HasTeacher(tch.ID))
	assert.True(t, tch.HasClassroom(c1.ID))
	assert.True(t, tch.HasClassroom(c2.ID))

	RemoveTeacher(&c1, &tch)
	assert.False(t, c1.HasTeacher(tch.ID))
	assert.False(t, tch.HasClassroom(c1.ID))
	assert.True(t, tch.HasClassroom(c2.ID))
}
