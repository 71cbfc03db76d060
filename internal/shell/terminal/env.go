package terminal

import (
	"fmt"
	"os"
	"sort"

	"github.com/compose-spec/compose-go/v2/dotenv"
	"github.com/mattn/go-shellwords"
)

// SplitArgs splits a free-form argument string such as
// `--name web -e "GREETING=hello world"` the way a POSIX shell would,
// without expanding variables.
func SplitArgs(s string) ([]string, error) {
	args, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("split arguments %q: %w", s, err)
	}
	return args, nil
}

// LoadEnvFiles reads .env files in order and exports their variables into
// the process environment. Variables already set are kept, so the real
// environment always wins over the files. It returns the names it set.
func LoadEnvFiles(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	values, err := dotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("read env files: %w", err)
	}

	var set []string
	for name, value := range values {
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			return set, fmt.Errorf("set %s: %w", name, err)
		}
		set = append(set, name)
	}
	sort.Strings(set)
	return set, nil
}
