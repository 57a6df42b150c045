package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/school"
)

type teacherRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CreatedAt null.Time `db:"created_at"`
	UpdatedAt null.Time `db:"updated_at"`
}

type studentRow struct {
	ID          string      `db:"id"`
	UserID      string      `db:"user_id"`
	ClassroomID null.String `db:"classroom_id"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type classroomRow struct {
	ID          string      `db:"id"`
	CreatorID   string      `db:"creator_id"`
	Name        null.String `db:"name"`
	Description null.String `db:"description"`
	URL         null.String `db:"url"`
	IsActive    null.Bool   `db:"is_active"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type meetingDateRow struct {
	ID          string      `db:"id"`
	ClassroomID string      `db:"classroom_id"`
	StartDate   null.Time   `db:"start_date"`
	EndDate     null.Time   `db:"end_date"`
	StartTime   null.String `db:"start_time"`
	EndTime     null.String `db:"end_time"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func packClassroom(c school.Classroom) classroomRow {
	return classroomRow{
		ID:          c.ID,
		CreatorID:   c.CreatorID,
		Name:        null.NewString(c.Name, c.Name != ""),
		Description: null.NewString(c.Description, c.Description != ""),
		URL:         null.NewString(c.URL, c.URL != ""),
		IsActive:    null.BoolFrom(c.IsActive),
		CreatedAt:   null.NewTime(c.CreatedAt.UTC(), !c.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(c.UpdatedAt.UTC(), !c.UpdatedAt.IsZero()),
	}
}

func unpackClassroom(row classroomRow) school.Classroom {
	return school.Classroom{
		ID:          row.ID,
		CreatorID:   row.CreatorID,
		Name:        row.Name.String,
		Description: row.Description.String,
		URL:         row.URL.String,
		IsActive:    row.IsActive.Bool,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func packMeetingDate(m school.MeetingDate) meetingDateRow {
	return meetingDateRow{
		ID:          m.ID,
		ClassroomID: m.ClassroomID,
		StartDate:   null.NewTime(m.StartDate.UTC(), !m.StartDate.IsZero()),
		EndDate:     null.NewTime(m.EndDate.UTC(), !m.EndDate.IsZero()),
		StartTime:   null.NewString(m.StartTime, m.StartTime != ""),
		EndTime:     null.NewString(m.EndTime, m.EndTime != ""),
		CreatedAt:   null.NewTime(m.CreatedAt.UTC(), !m.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(m.UpdatedAt.UTC(), !m.UpdatedAt.IsZero()),
	}
}

func unpackMeetingDate(row meetingDateRow) school.MeetingDate {
	return school.MeetingDate{
		ID:          row.ID,
		ClassroomID: row.ClassroomID,
		StartDate:   row.StartDate.Time,
		EndDate:     row.EndDate.Time,
		StartTime:   row.StartTime.String,
		EndTime:     row.EndTime.String,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

// schoolRepository persists the classroom graph. Association sets on the
// domain structs map to relational form: Classroom.TeacherIDs lives in the
// classroom_teacher join table, StudentIDs in student.classroom_id and
// MeetingDateIDs in meeting_date.classroom_id.
type schoolRepository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db, ext: db}
}

func (repo *schoolRepository) Atomic(ctx context.Context, fn func(repo school.Repository) error) error {
	return atomic(ctx, repo.db, repo.ext, func(ext sqlx.ExtContext) error {
		return fn(&schoolRepository{db: repo.db, ext: ext})
	})
}

// ------------------------------------------------------------------ classroom

func (repo *schoolRepository) CreateClassroom(ctx context.Context, c school.Classroom) (school.Classroom, error) {
	c.ID = uuid.New().String()
	if _, err := sqlx.NamedExecContext(ctx, repo.ext, `
		INSERT INTO classroom (id, creator_id, name, description, url, is_active, created_at, updated_at)
		VALUES (:id, :creator_id, :name, :description, :url, :is_active, :created_at, :updated_at)`,
		packClassroom(c),
	); err != nil {
		if violatedConstraint(err) == "classroom_name_key" {
			return school.Classroom{}, school.ErrNameExists
		}
		return school.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	return c, nil
}

func (repo *schoolRepository) GetClassroomByID(ctx context.Context, id string) (school.Classroom, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Classroom{}, school.ErrClassroomNotFound
	}
	var row classroomRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM classroom WHERE id = $1`, id); err != nil {
		return school.Classroom{}, trapNoRowsErr(err, school.ErrClassroomNotFound, "finding classroom by ID")
	}
	c := unpackClassroom(row)
	if err := repo.loadClassroomAssociations(ctx, &c); err != nil {
		return school.Classroom{}, err
	}
	return c, nil
}

func (repo *schoolRepository) QueryAllClassrooms(ctx context.Context) ([]school.Classroom, error) {
	var rows []classroomRow
	if err := sqlx.SelectContext(ctx, repo.ext, &rows, `SELECT * FROM classroom`); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	classrooms := make([]school.Classroom, 0, len(rows))
	for _, row := range rows {
		c := unpackClassroom(row)
		if err := repo.loadClassroomAssociations(ctx, &c); err != nil {
			return nil, err
		}
		classrooms = append(classrooms, c)
	}
	return classrooms, nil
}

func (repo *schoolRepository) ClassroomNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := repo.ext.QueryRowxContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM classroom WHERE lower(name) = lower($1))`, name,
	).Scan(&exists)
	return exists, errors.Wrap(err, "checking classroom name")
}

// UpdateClassroom saves the classroom fields and syncs the teacher membership
// join table from TeacherIDs. StudentIDs and MeetingDateIDs are owned by the
// student and meeting_date rows and saved through those.
func (repo *schoolRepository) UpdateClassroom(ctx context.Context, c school.Classroom) (school.Classroom, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.ext, `
		UPDATE classroom
		SET name = :name, description = :description, url = :url, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`,
		packClassroom(c),
	)
	if err != nil {
		if violatedConstraint(err) == "classroom_name_key" {
			return school.Classroom{}, school.ErrNameExists
		}
		return school.Classroom{}, errors.Wrap(err, "updating classroom")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Classroom{}, school.ErrClassroomNotFound
	}
	if err := repo.syncClassroomTeachers(ctx, c.ID, c.TeacherIDs); err != nil {
		return school.Classroom{}, err
	}
	return c, nil
}

func (repo *schoolRepository) DeleteClassroom(ctx context.Context, id string) error {
	if _, err := repo.ext.ExecContext(ctx, `DELETE FROM classroom_teacher WHERE classroom_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting classroom teachers")
	}
	if _, err := repo.ext.ExecContext(ctx, `DELETE FROM classroom WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return nil
}

func (repo *schoolRepository) loadClassroomAssociations(ctx context.Context, c *school.Classroom) error {
	if err := sqlx.SelectContext(ctx, repo.ext, &c.TeacherIDs,
		`SELECT teacher_id FROM classroom_teacher WHERE classroom_id = $1`, c.ID,
	); err != nil {
		return errors.Wrap(err, "loading classroom teachers")
	}
	if err := sqlx.SelectContext(ctx, repo.ext, &c.StudentIDs,
		`SELECT id FROM student WHERE classroom_id = $1`, c.ID,
	); err != nil {
		return errors.Wrap(err, "loading classroom students")
	}
	if err := sqlx.SelectContext(ctx, repo.ext, &c.MeetingDateIDs,
		`SELECT id FROM meeting_date WHERE classroom_id = $1`, c.ID,
	); err != nil {
		return errors.Wrap(err, "loading classroom meeting dates")
	}
	return nil
}

func (repo *schoolRepository) syncClassroomTeachers(ctx context.Context, classroomID string, teacherIDs []string) error {
	if _, err := repo.ext.ExecContext(ctx,
		`DELETE FROM classroom_teacher WHERE classroom_id = $1 AND teacher_id <> ALL($2)`,
		classroomID, pq.Array(teacherIDs),
	); err != nil {
		return errors.Wrap(err, "detaching classroom teachers")
	}
	for _, tid := range teacherIDs {
		if _, err := repo.ext.ExecContext(ctx, `
			INSERT INTO classroom_teacher (classroom_id, teacher_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			classroomID, tid,
		); err != nil {
			return errors.Wrap(err, "attaching classroom teacher")
		}
	}
	return nil
}

// -------------------------------------------------------------------- teacher

func (repo *schoolRepository) GetTeacherByID(ctx context.Context, id string) (school.Teacher, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	var row teacherRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM teacher WHERE id = $1`, id); err != nil {
		return school.Teacher{}, trapNoRowsErr(err, school.ErrTeacherNotFound, "finding teacher by ID")
	}
	return repo.unpackTeacher(ctx, row)
}

func (repo *schoolRepository) GetTeacherByUserID(ctx context.Context, userID string) (school.Teacher, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	var row teacherRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM teacher WHERE user_id = $1`, userID); err != nil {
		return school.Teacher{}, trapNoRowsErr(err, school.ErrTeacherNotFound, "finding teacher by user ID")
	}
	return repo.unpackTeacher(ctx, row)
}

func (repo *schoolRepository) GetTeacherByUsername(ctx context.Context, username string) (school.Teacher, error) {
	var row teacherRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `
		SELECT t.* FROM teacher t
		INNER JOIN "user" u ON u.id = t.user_id
		WHERE u.username = $1`, username,
	); err != nil {
		return school.Teacher{}, trapNoRowsErr(err, school.ErrTeacherNotFound, "finding teacher by username")
	}
	return repo.unpackTeacher(ctx, row)
}

func (repo *schoolRepository) QueryClassroomTeachers(ctx context.Context, classroomID string) ([]school.Teacher, error) {
	var rows []teacherRow
	if err := sqlx.SelectContext(ctx, repo.ext, &rows, `
		SELECT t.* FROM teacher t
		INNER JOIN classroom_teacher ct ON ct.teacher_id = t.id
		WHERE ct.classroom_id = $1`, classroomID,
	); err != nil {
		return nil, errors.Wrap(err, "querying classroom teachers")
	}
	teachers := make([]school.Teacher, 0, len(rows))
	for _, row := range rows {
		t, err := repo.unpackTeacher(ctx, row)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, t)
	}
	return teachers, nil
}

// UpdateTeacher syncs the teacher's side of the membership join table from
// ClassroomIDs; the teacher row itself carries no mutable fields besides
// updated_at.
func (repo *schoolRepository) UpdateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	res, err := repo.ext.ExecContext(ctx, `UPDATE teacher SET updated_at = now() WHERE id = $1`, t.ID)
	if err != nil {
		return school.Teacher{}, errors.Wrap(err, "updating teacher")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Teacher{}, school.ErrTeacherNotFound
	}

	if _, err = repo.ext.ExecContext(ctx,
		`DELETE FROM classroom_teacher WHERE teacher_id = $1 AND classroom_id <> ALL($2)`,
		t.ID, pq.Array(t.ClassroomIDs),
	); err != nil {
		return school.Teacher{}, errors.Wrap(err, "detaching teacher classrooms")
	}
	for _, cid := range t.ClassroomIDs {
		if _, err = repo.ext.ExecContext(ctx, `
			INSERT INTO classroom_teacher (classroom_id, teacher_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			cid, t.ID,
		); err != nil {
			return school.Teacher{}, errors.Wrap(err, "attaching teacher classroom")
		}
	}
	return t, nil
}

func (repo *schoolRepository) unpackTeacher(ctx context.Context, row teacherRow) (school.Teacher, error) {
	t := school.Teacher{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if err := sqlx.SelectContext(ctx, repo.ext, &t.ClassroomIDs,
		`SELECT classroom_id FROM classroom_teacher WHERE teacher_id = $1`, t.ID,
	); err != nil {
		return school.Teacher{}, errors.Wrap(err, "loading teacher classrooms")
	}
	return t, nil
}

// -------------------------------------------------------------------- student

func (repo *schoolRepository) GetStudentByID(ctx context.Context, id string) (school.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.Student{}, school.ErrStudentNotFound
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM student WHERE id = $1`, id); err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrStudentNotFound, "finding student by ID")
	}
	return unpackStudent(row), nil
}

func (repo *schoolRepository) GetStudentByUserID(ctx context.Context, userID string) (school.Student, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return school.Student{}, school.ErrStudentNotFound
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM student WHERE user_id = $1`, userID); err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrStudentNotFound, "finding student by user ID")
	}
	return unpackStudent(row), nil
}

func (repo *schoolRepository) QueryClassroomStudents(ctx context.Context, classroomID string) ([]school.Student, error) {
	var rows []studentRow
	if err := sqlx.SelectContext(ctx, repo.ext, &rows, `SELECT * FROM student WHERE classroom_id = $1`, classroomID); err != nil {
		return nil, errors.Wrap(err, "querying classroom students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, unpackStudent(row))
	}
	return students, nil
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, s school.Student) (school.Student, error) {
	res, err := repo.ext.ExecContext(ctx,
		`UPDATE student SET classroom_id = $2, updated_at = now() WHERE id = $1`,
		s.ID, null.NewString(s.ClassroomID, s.ClassroomID != ""),
	)
	if err != nil {
		return school.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	return s, nil
}

func unpackStudent(row studentRow) school.Student {
	return school.Student{
		ID:          row.ID,
		UserID:      row.UserID,
		ClassroomID: row.ClassroomID.String,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

// --------------------------------------------------------------- meeting date

func (repo *schoolRepository) CreateMeetingDate(ctx context.Context, m school.MeetingDate) (school.MeetingDate, error) {
	m.ID = uuid.New().String()
	if _, err := sqlx.NamedExecContext(ctx, repo.ext, `
		INSERT INTO meeting_date (id, classroom_id, start_date, end_date, start_time, end_time, created_at, updated_at)
		VALUES (:id, :classroom_id, :start_date, :end_date, :start_time, :end_time, :created_at, :updated_at)`,
		packMeetingDate(m),
	); err != nil {
		return school.MeetingDate{}, errors.Wrap(err, "inserting meeting date")
	}
	return m, nil
}

func (repo *schoolRepository) GetMeetingDateByID(ctx context.Context, id string) (school.MeetingDate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return school.MeetingDate{}, school.ErrMeetingDateNotFound
	}
	var row meetingDateRow
	if err := sqlx.GetContext(ctx, repo.ext, &row, `SELECT * FROM meeting_date WHERE id = $1`, id); err != nil {
		return school.MeetingDate{}, trapNoRowsErr(err, school.ErrMeetingDateNotFound, "finding meeting date by ID")
	}
	return unpackMeetingDate(row), nil
}

func (repo *schoolRepository) QueryClassroomMeetingDates(ctx context.Context, classroomID string) ([]school.MeetingDate, error) {
	var rows []meetingDateRow
	if err := sqlx.SelectContext(ctx, repo.ext, &rows,
		`SELECT * FROM meeting_date WHERE classroom_id = $1 ORDER BY start_date, start_time`, classroomID,
	); err != nil {
		return nil, errors.Wrap(err, "querying classroom meeting dates")
	}
	meets := make([]school.MeetingDate, 0, len(rows))
	for _, row := range rows {
		meets = append(meets, unpackMeetingDate(row))
	}
	return meets, nil
}

func (repo *schoolRepository) UpdateMeetingDate(ctx context.Context, m school.MeetingDate) (school.MeetingDate, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.ext, `
		UPDATE meeting_date
		SET start_date = :start_date, end_date = :end_date, start_time = :start_time, end_time = :end_time, updated_at = :updated_at
		WHERE id = :id`,
		packMeetingDate(m),
	)
	if err != nil {
		return school.MeetingDate{}, errors.Wrap(err, "updating meeting date")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return school.MeetingDate{}, school.ErrMeetingDateNotFound
	}
	return m, nil
}

func (repo *schoolRepository) DeleteMeetingDate(ctx context.Context, id string) error {
	if _, err := repo.ext.ExecContext(ctx, `DELETE FROM meeting_date WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting meeting date")
	}
	return nil
}
