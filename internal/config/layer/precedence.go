package layer

// Merge priorities of the standard sources.
const (
	PriorityBuiltin   = 0
	PriorityUser      = 100
	PriorityWorkspace = 200
	PriorityEnv       = 500
	PriorityArgs      = 600
)
