package database

// Storage is the data-access object constructed once at process startup and
// passed down to every service and handler.
type Storage interface {
	Init() error
	Close() error
	HealthCheck() error
	GetDB() interface{}
}
