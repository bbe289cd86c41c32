package cli

var (
	FlagToEnvName   = flagToEnvName
	ResolveRoot     = resolveRoot
	ErrNotDirectory = errNotDirectory
	IsUsageError    = isUsageError
)
