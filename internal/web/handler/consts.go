package handler

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// RouterRootPath is the root path inside a route group.
	RouterRootPath = ""

	// APIPath is the prefix of the end-user JSON API.
	APIPath = "/api/v1"

	// AdminPath is the prefix of the admin pages.
	AdminPath = "/admin"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"

	// DefaultPageSize is used for listings without pageSize parameter.
	DefaultPageSize = 20

	// MaxPageSize caps the pageSize parameter.
	MaxPageSize = 100
)
