package maincmd

import "github.com/caarlos0/env/v6"

// EnvConfig binds the two environment variables spec.md §6.1 and §7
// recognize: CASSETTE_STDLIB names a directory of extra `.ct` project
// modules to compile in alongside the command-line files, and NO_COLOR
// (the widely adopted https://no-color.org convention) disables
// lang/report's ANSI styling.
type EnvConfig struct {
	StdlibDir string `env:"CASSETTE_STDLIB"`
	NoColor   bool   `env:"NO_COLOR"`
}

// loadEnvConfig reads EnvConfig from the process environment, following the
// same caarlos0/env binding the teacher pulls in (indirectly, through
// mna/mainer) promoted here to a direct, explicit use.
func loadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}
