package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envAnnotation marks flags whose value was taken from the environment.
const envAnnotation = "toxwatch_env"

// bindEnvVars automatically binds environment variables to cobra command flags.
// Environment variable names are generated as TOXWATCH_<FLAG_NAME> where the
// flag name is converted to uppercase and dashes are replaced with underscores.
//
// For example:
//   - Flag "log-level" becomes environment variable "TOXWATCH_LOG_LEVEL"
//   - Flag "poll-interval" becomes environment variable "TOXWATCH_POLL_INTERVAL"
//
// Arguments take precedence over environment variables, which take precedence
// over the project configuration file and default values.
//
// This function also updates flag usage descriptions to include the environment
// variable name, making it visible in help output.
func bindEnvVars(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		bindFlagToEnv(flag)
	})

	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		bindFlagToEnv(flag)
	})
}

// bindFlagToEnv binds a single flag to its corresponding environment variable.
func bindFlagToEnv(flag *pflag.Flag) {
	envName := flagToEnvName(flag.Name)

	if !strings.Contains(flag.Usage, envName) {
		flag.Usage = fmt.Sprintf("%s ($%s)", flag.Usage, envName)
	}

	// Skip if flag was already set via command line arguments.
	if flag.Changed {
		return
	}

	envValue, ok := os.LookupEnv(envName)
	if !ok {
		return
	}

	err := flag.Value.Set(envValue)
	if err != nil {
		// Log error but don't fail - use default value instead.
		slog.Error("failed to set flag from environment variable",
			slog.String("flag", flag.Name),
			slog.String("env", envName),
			slog.String("value", envValue),
			slog.Any("error", err),
		)

		return
	}

	if flag.Annotations == nil {
		flag.Annotations = map[string][]string{}
	}

	flag.Annotations[envAnnotation] = []string{envName}
}

// isExplicit reports whether the named flag was set on the command line or
// through its environment variable.
func isExplicit(flags *pflag.FlagSet, name string) bool {
	flag := flags.Lookup(name)
	if flag == nil {
		return false
	}

	if flag.Changed {
		return true
	}

	_, ok := flag.Annotations[envAnnotation]

	return ok
}

// flagToEnvName converts a flag name to its corresponding environment variable name.
// Example: "log-level" -> "TOXWATCH_LOG_LEVEL".
func flagToEnvName(flagName string) string {
	envName := strings.ReplaceAll(flagName, "-", "_")
	return strings.ToUpper(cmdName + "_" + envName)
}
