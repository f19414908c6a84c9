// Package envfile merges an optional KEY=VALUE file into the process
// environment before anything else consults it.
package envfile

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Load applies the file at path to the current environment. Variables that
// are already set keep their existing values. A missing file is fine; the
// stack runs without one.
func Load(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", path).Msg("no env file")
			return nil
		}
		return errors.Wrap(err, "load env file")
	}
	log.Info().Str("path", path).Msg("loaded env file")
	return nil
}
