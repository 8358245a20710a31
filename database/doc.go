// Package database manages the Postgres engine and request-scoped sessions
// on top of GORM.
//
// A ConnectionManager owns the pool. Each Session checks one connection out
// of it, runs every statement of a unit of work on that connection and
// returns it on Close:
//
//	err := manager.Session(ctx, func(s *database.Session) error {
//	    return s.DB().Create(&row).Error
//	})
//
// Session commits when fn returns nil, rolls back and returns fn's error
// otherwise, and always releases the connection.
package database
