package exitcode

const (
	Success           = 0
	RuntimeFailure    = 1
	InvalidUsage      = 2
	InvalidConfig     = 3
	MissingDependency = 4
	TimedOut          = 124
	Interrupted       = 130
)
