package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// ExitErr wraps an error into a non zero exit with the standard error format.
func ExitErr(err error) cli.ExitCoder {
	return cli.Exit(Format(err), 1)
}
