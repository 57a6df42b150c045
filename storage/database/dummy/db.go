package dummydb

import (
	"sync"

	"github.com/trezcool/shule/core/messaging"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// DB is an in-memory stand-in for the real database, used by tests and local
// development. A single lock covers all tables so that Atomic blocks spanning
// several of them behave like one transaction.
type DB struct {
	mu sync.RWMutex

	users         map[string]*user.User
	teachers      map[string]*school.Teacher
	students      map[string]*school.Student
	classrooms    map[string]*school.Classroom
	meetingDates  map[string]*school.MeetingDate
	messages      map[string]*messaging.Message
	notifications map[string]*messaging.Notification
}

func Open() (*DB, error) {
	db := &DB{
		users:         make(map[string]*user.User),
		teachers:      make(map[string]*school.Teacher),
		students:      make(map[string]*school.Student),
		classrooms:    make(map[string]*school.Classroom),
		meetingDates:  make(map[string]*school.MeetingDate),
		messages:      make(map[string]*messaging.Message),
		notifications: make(map[string]*messaging.Notification),
	}
	return db, nil
}

// lockable factors the "already inside an Atomic block" bookkeeping shared by
// the repositories: a transaction-bound repository holds the DB write lock for
// the whole block, so its methods must not lock again.
type lockable struct {
	db *DB
	tx bool
}

func (l lockable) rLock() func() {
	if l.tx {
		return func() {}
	}
	l.db.mu.RLock()
	return l.db.mu.RUnlock
}

func (l lockable) lock() func() {
	if l.tx {
		return func() {}
	}
	l.db.mu.Lock()
	return l.db.mu.Unlock
}
