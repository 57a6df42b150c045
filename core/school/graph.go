package school

// Relationship invariant maintenance.
//
// Every structural mutation between Classroom, Teacher, Student and
// MeetingDate goes through the helpers below: both sides of a bidirectional
// association are updated in the same call, adds and removes are idempotent,
// and a violated precondition (e.g. removing a student that is not enrolled
// here) leaves both entities untouched rather than half-linked. The helpers
// never persist anything; callers wrap the paired saves in one transaction.

// AddTeacher links t to c: t joins c.TeacherIDs and c joins t.ClassroomIDs.
func AddTeacher(c *Classroom, t *Teacher) {
	c.TeacherIDs = appendID(c.TeacherIDs, t.ID)
	t.ClassroomIDs = appendID(t.ClassroomIDs, c.ID)
}

// RemoveTeacher unlinks t from c on both sides.
func RemoveTeacher(c *Classroom, t *Teacher) {
	c.TeacherIDs = removeID(c.TeacherIDs, t.ID)
	t.ClassroomIDs = removeID(t.ClassroomIDs, c.ID)
}

// AddStudent enrolls s into c. A student enrolled elsewhere must be removed
// from its current classroom first; callers use this pairing to keep the
// single-classroom invariant.
func AddStudent(c *Classroom, s *Student) {
	c.StudentIDs = appendID(c.StudentIDs, s.ID)
	s.ClassroomID = c.ID
}

// RemoveStudent unenrolls s from c. A no-op when s is not enrolled in c.
func RemoveStudent(c *Classroom, s *Student) {
	if s.ClassroomID != c.ID {
		return
	}
	c.StudentIDs = removeID(c.StudentIDs, s.ID)
	s.ClassroomID = ""
}

// AddMeetingDate links m to c.
func AddMeetingDate(c *Classroom, m *MeetingDate) {
	c.MeetingDateIDs = appendID(c.MeetingDateIDs, m.ID)
	m.ClassroomID = c.ID
}

// RemoveMeetingDate unlinks m from c. A no-op when m belongs to another
// classroom.
func RemoveMeetingDate(c *Classroom, m *MeetingDate) {
	if m.ClassroomID != c.ID {
		return
	}
	c.MeetingDateIDs = removeID(c.MeetingDateIDs, m.ID)
	m.ClassroomID = ""
}

func containsID(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// appendID inserts id if absent (idempotent).
func appendID(ids []string, id string) []string {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

// removeID removes id if present (idempotent).
func removeID(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
