package render

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// UserLogger gives user-facing feedback on the run while mirroring every
// message into zerolog for debugging.
type UserLogger struct {
	log zerolog.Logger
}

// NewUserLogger creates a user logger bound to the context's zerolog logger.
func NewUserLogger(ctx context.Context) *UserLogger {
	return &UserLogger{log: *zerolog.Ctx(ctx)}
}

// Success reports a completed step.
func (u *UserLogger) Success(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	pterm.Success.Println(msg)
	u.log.Info().Msg(msg)
}

// Info reports neutral progress information.
func (u *UserLogger) Info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	pterm.Info.Println(msg)
	u.log.Info().Msg(msg)
}

// Warning reports something worth attention that does not stop the run.
func (u *UserLogger) Warning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	pterm.Warning.Println(msg)
	u.log.Warn().Msg(msg)
}

// Error reports a failure.
func (u *UserLogger) Error(err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	pterm.Error.Println(msg)
	if err != nil {
		pterm.Error.Println(err)
		u.log.Error().Err(err).Msg(msg)
		return
	}
	u.log.Error().Msg(msg)
}
